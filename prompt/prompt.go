// Package prompt defines the typed input/output contracts for the
// pipeline's LLM-mediated stages (C6): extract, merge, organize,
// summarize-chat, event-tag, summarize-profile, and the pure
// (non-LLM) context-pack renderer.
//
// Every parser here is hand-written and deterministic. None of them
// attempt to repair malformed model output with regex "fixups" — an
// output that doesn't match the stage's grammar is a ParseFailure, full
// stop, per §9's explicit re-architecture note.
package prompt

import (
	"strings"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/profile"
)

// Fact is one atomic extracted fact.
type Fact struct {
	Topic    string
	SubTopic string
	Memo     string
}

// ParseExtract parses the extract stage's output grammar: one fact per
// line, formatted "topic\tsub_topic\tmemo". Blank lines are skipped.
// Topic/sub_topic are normalized; duplicate (topic, sub_topic) pairs
// within the batch are coalesced by joining memos with "; " (§4.6).
func ParseExtract(output string) ([]Fact, error) {
	lines := strings.Split(strings.TrimSpace(stripFence(output)), "\n")
	byKey := make(map[string]*Fact)
	var order []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return nil, errs.New(errs.ParseFailure, "extract: malformed line %q", line)
		}
		topic := profile.NormalizeTopic(parts[0])
		subTopic := profile.NormalizeTopic(parts[1])
		memo := strings.TrimSpace(parts[2])
		if topic == "" || subTopic == "" || memo == "" {
			return nil, errs.New(errs.ParseFailure, "extract: empty field in line %q", line)
		}

		key := topic + "\x00" + subTopic
		if existing, ok := byKey[key]; ok {
			existing.Memo = existing.Memo + "; " + memo
			continue
		}
		f := &Fact{Topic: topic, SubTopic: subTopic, Memo: memo}
		byKey[key] = f
		order = append(order, key)
	}

	facts := make([]Fact, 0, len(order))
	for _, k := range order {
		facts = append(facts, *byKey[k])
	}
	return facts, nil
}

// MergeOutcome is the tagged result of the merge stage.
type MergeOutcome struct {
	Update bool // true: Memo replaces the old value. false: abort, keep old.
	Memo   string
}

// ParseMerge parses the merge stage's tagged grammar:
// "UPDATE\t<memo>" or "ABORT\tinvalid". Anything else is ParseFailure.
func ParseMerge(output string) (MergeOutcome, error) {
	line := strings.TrimSpace(stripFence(output))
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 {
		return MergeOutcome{}, errs.New(errs.ParseFailure, "merge: malformed output %q", line)
	}
	switch strings.ToUpper(strings.TrimSpace(parts[0])) {
	case "UPDATE":
		memo := strings.TrimSpace(parts[1])
		if memo == "" {
			return MergeOutcome{}, errs.New(errs.ParseFailure, "merge: empty memo in UPDATE")
		}
		return MergeOutcome{Update: true, Memo: memo}, nil
	case "ABORT":
		return MergeOutcome{Update: false}, nil
	default:
		return MergeOutcome{}, errs.New(errs.ParseFailure, "merge: unknown tag %q", parts[0])
	}
}

// OrganizedSlot is one consolidated slot returned by the organize stage.
type OrganizedSlot struct {
	SubTopic string
	Content  string
}

// ParseOrganize parses the organize stage's output: one consolidated slot
// per line, "sub_topic\tcontent". An empty (zero-line) output parses to
// zero slots with no error, which is distinct from a ParseFailure; the
// pipeline treats zero slots as an organize failure and keeps the
// pre-organize set for that topic.
func ParseOrganize(output string) ([]OrganizedSlot, error) {
	trimmed := strings.TrimSpace(stripFence(output))
	if trimmed == "" {
		return nil, nil
	}
	lines := strings.Split(trimmed, "\n")
	slots := make([]OrganizedSlot, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, errs.New(errs.ParseFailure, "organize: malformed line %q", line)
		}
		sub := profile.NormalizeTopic(parts[0])
		content := strings.TrimSpace(parts[1])
		if sub == "" || content == "" {
			return nil, errs.New(errs.ParseFailure, "organize: empty field in line %q", line)
		}
		slots = append(slots, OrganizedSlot{SubTopic: sub, Content: content})
	}
	return slots, nil
}

// ParseSummarizeChat parses the summarize-chat stage: the entire output
// is the event_tip narrative. Empty output is a ParseFailure — a skipped
// summary is represented by not calling the stage at all, not by an empty
// response from it.
func ParseSummarizeChat(output string) (string, error) {
	tip := strings.TrimSpace(stripFence(output))
	if tip == "" {
		return "", errs.New(errs.ParseFailure, "summarize-chat: empty output")
	}
	return tip, nil
}

// TagValue is one parsed (tag, value) pair before taxonomy filtering.
type TagValue struct {
	Tag   string
	Value string
}

// ParseEventTags parses the event-tag stage's output: one "tag\tvalue"
// pair per line. Filtering against the project's declared taxonomy is the
// pipeline's job, not the parser's.
func ParseEventTags(output string) ([]TagValue, error) {
	trimmed := strings.TrimSpace(stripFence(output))
	if trimmed == "" {
		return nil, nil
	}
	lines := strings.Split(trimmed, "\n")
	tags := make([]TagValue, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, errs.New(errs.ParseFailure, "event-tag: malformed line %q", line)
		}
		tag := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if tag == "" || value == "" {
			return nil, errs.New(errs.ParseFailure, "event-tag: empty field in line %q", line)
		}
		tags = append(tags, TagValue{Tag: tag, Value: value})
	}
	return tags, nil
}

// ParseSummarizeProfile parses the summarize-profile stage: the entire
// output is the replacement content.
func ParseSummarizeProfile(output string) (string, error) {
	content := strings.TrimSpace(stripFence(output))
	if content == "" {
		return "", errs.New(errs.ParseFailure, "summarize-profile: empty output")
	}
	return content, nil
}

// ParseSlotFilter parses the chat-aware relevance-filter stage's output:
// one profile slot id per line. Empty output means "nothing relevant" —
// a valid, zero-id result, not a parse failure.
func ParseSlotFilter(output string) ([]string, error) {
	trimmed := strings.TrimSpace(stripFence(output))
	if trimmed == "" {
		return nil, nil
	}
	lines := strings.Split(trimmed, "\n")
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ids = append(ids, line)
	}
	return ids, nil
}

// stripFence removes a single leading/trailing ```-delimited code fence,
// the one normalization the corpus's own LLM-output handling performs
// (see the tool-selection prompt parser in the pack's chat server) —
// distinct from attempting to repair malformed content inside the fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

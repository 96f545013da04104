package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/memobase-dev/memobase-go/llmgateway"
	"github.com/memobase-dev/memobase-go/profile"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/prompt"
)

type candidate struct {
	subTopic string
	content  string
	slotID   string // "" for a not-yet-committed add
}

// organize consolidates any topic whose sub-topic count would exceed
// max_profile_subtopics after the merge pass (§4.7 "organize"). On organize
// failure (the call errors, or it legitimately returns zero slots) the
// pre-organize set for that topic is kept untouched and the failure is
// logged — it is never treated as a reason to fail the flush.
func (p *Pipeline) organize(ctx context.Context, proj *project.Project, existing []*profile.Slot, delta *profile.Delta) {
	maxSub := proj.Config.MaxSubtopics
	if maxSub <= 0 {
		return
	}

	updatedContent := make(map[string]string, len(delta.Updates))
	for _, u := range delta.Updates {
		updatedContent[u.ID] = u.Content
	}

	byTopic := make(map[string][]candidate)

	for _, s := range existing {
		content := s.Content
		if c, ok := updatedContent[s.ID]; ok {
			content = c
		}
		byTopic[s.Attrs.Topic] = append(byTopic[s.Attrs.Topic], candidate{subTopic: s.Attrs.SubTopic, content: content, slotID: s.ID})
	}
	addIdxByTopic := make(map[string][]int)
	for i, a := range delta.Adds {
		byTopic[a.Attrs.Topic] = append(byTopic[a.Attrs.Topic], candidate{subTopic: a.Attrs.SubTopic, content: a.Content})
		addIdxByTopic[a.Attrs.Topic] = append(addIdxByTopic[a.Attrs.Topic], i)
	}

	// §4.6: the consolidated set must shrink to at most ⌈max_profile_subtopics/2⌉+1
	// slots, not merely back down to max_profile_subtopics.
	maxOrganized := (maxSub+1)/2 + 1

	for topic, cands := range byTopic {
		if len(cands) <= maxSub {
			continue
		}

		system := organizeSystemPrompt(proj, topic, cands, maxOrganized)
		out, err := p.Gateway.Complete(ctx, proj.ID, "", system, llmgateway.Options{PromptID: "organize"})
		if err != nil {
			p.logger().Warn("pipeline: organize call failed project=%s topic=%s: %v", proj.ID, topic, err)
			continue
		}
		slots, err := prompt.ParseOrganize(out)
		if err != nil {
			p.logger().Warn("pipeline: organize output unparsable project=%s topic=%s: %v", proj.ID, topic, err)
			continue
		}
		if len(slots) == 0 {
			p.logger().Warn("pipeline: organize returned zero slots project=%s topic=%s, keeping pre-organize set", proj.ID, topic)
			continue
		}

		slots = dedupeOrganizeSlots(slots)
		if len(slots) > maxOrganized {
			slots = slots[:maxOrganized]
		}

		for _, c := range cands {
			if c.slotID != "" {
				delta.Deletes = append(delta.Deletes, c.slotID)
			}
		}
		delta.Updates = removeUpdatesForTopic(delta.Updates, topic)
		delta.Adds = removeAddsAtIndices(delta.Adds, addIdxByTopic[topic])

		for _, os := range slots {
			delta.Adds = append(delta.Adds, profile.NewSlot{
				Content: os.Content,
				Attrs:   profile.Attrs{Topic: topic, SubTopic: os.SubTopic},
			})
		}
	}
}

// dedupeOrganizeSlots coalesces any duplicate sub_topic the organize prompt's
// output may contain, joining memos the same way ParseExtract coalesces
// duplicate fields within a single fact.
func dedupeOrganizeSlots(slots []prompt.OrganizedSlot) []prompt.OrganizedSlot {
	out := make([]prompt.OrganizedSlot, 0, len(slots))
	idx := make(map[string]int, len(slots))
	for _, s := range slots {
		if i, ok := idx[s.SubTopic]; ok {
			out[i].Content = out[i].Content + "; " + s.Content
			continue
		}
		idx[s.SubTopic] = len(out)
		out = append(out, s)
	}
	return out
}

func removeUpdatesForTopic(updates []profile.UpdateSlot, topic string) []profile.UpdateSlot {
	out := updates[:0]
	for _, u := range updates {
		if u.Attrs != nil && u.Attrs.Topic == topic {
			continue
		}
		out = append(out, u)
	}
	return out
}

func removeAddsAtIndices(adds []profile.NewSlot, idxs []int) []profile.NewSlot {
	if len(idxs) == 0 {
		return adds
	}
	drop := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		drop[i] = true
	}
	out := make([]profile.NewSlot, 0, len(adds))
	for i, a := range adds {
		if drop[i] {
			continue
		}
		out = append(out, a)
	}
	return out
}

func organizeSystemPrompt(proj *project.Project, topic string, cands []candidate, maxOrganized int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The %q topic has more sub-topics than the project allows (max %d).\n", topic, proj.Config.MaxSubtopics)
	fmt.Fprintf(&sb, "Consolidate the following sub_topic/content pairs into at most %d, merging overlapping ones.\n", maxOrganized)
	sb.WriteString("Reply with one consolidated slot per line: sub_topic<TAB>content. No other text.\n\n")
	for _, c := range cands {
		fmt.Fprintf(&sb, "%s\t%s\n", c.subTopic, c.content)
	}
	return sb.String()
}

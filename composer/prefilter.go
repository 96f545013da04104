package composer

import (
	"context"
	"strings"

	"github.com/memobase-dev/memobase-go/llmgateway"
	"github.com/memobase-dev/memobase-go/profile"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/prompt"
)

// ChatFilter is the optional chat-aware relevance pre-filter (§4.9, used
// by proactive recommendation): given the last few chat turns, it asks
// the gateway which slot ids are relevant to the current turn before the
// budget selection runs. A parse or call failure falls back to the
// unfiltered slot set rather than failing the composition.
type ChatFilter struct {
	Gateway *llmgateway.Gateway
}

// Filter narrows slots down to the ones an LLM judges relevant to the
// last few chatTurns. On any error it returns slots unchanged.
func (f *ChatFilter) Filter(ctx context.Context, proj *project.Project, slots []*profile.Slot, chatTurns []string) []*profile.Slot {
	if f == nil || f.Gateway == nil || len(slots) == 0 || len(chatTurns) == 0 {
		return slots
	}

	system := chatFilterSystemPrompt(slots)
	input := strings.Join(chatTurns, "\n")
	output, err := f.Gateway.Complete(ctx, proj.ID, input, system, llmgateway.Options{})
	if err != nil {
		return slots
	}
	ids, err := prompt.ParseSlotFilter(output)
	if err != nil {
		return slots
	}
	if len(ids) == 0 {
		return slots
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var kept []*profile.Slot
	for _, s := range slots {
		if wanted[s.ID] {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return slots
	}
	return kept
}

func chatFilterSystemPrompt(slots []*profile.Slot) string {
	var sb strings.Builder
	sb.WriteString("Given the recent chat turns, list the ids of the profile slots below that are relevant to the current turn, one id per line. Output nothing if none are relevant.\n\n")
	for _, s := range slots {
		sb.WriteString(s.ID)
		sb.WriteString("\t")
		sb.WriteString(s.Attrs.Topic)
		sb.WriteString("::")
		sb.WriteString(s.Attrs.SubTopic)
		sb.WriteString(": ")
		sb.WriteString(s.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/llmgateway"
	"github.com/memobase-dev/memobase-go/profile"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/prompt"
)

// extract runs the extract stage: one LLM call over the whole kept
// transcript, producing candidate (topic, sub_topic, memo) facts (§4.7
// "extract").
func (p *Pipeline) extract(ctx context.Context, proj *project.Project, transcript string, existing []*profile.Slot) ([]prompt.Fact, error) {
	system := extractSystemPrompt(proj, existing)
	out, err := p.Gateway.Complete(ctx, proj.ID, transcript, system, llmgateway.Options{PromptID: "extract"})
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "pipeline: extract call failed")
	}
	facts, err := prompt.ParseExtract(out)
	if err != nil {
		p.logger().Warn("pipeline: extract produced unparsable output project=%s: %v", proj.ID, err)
		return nil, err
	}
	return facts, nil
}

func extractSystemPrompt(proj *project.Project, existing []*profile.Slot) string {
	var sb strings.Builder
	sb.WriteString("You extract durable facts about the user from a conversation or document.\n")
	sb.WriteString("Emit one fact per line: topic<TAB>sub_topic<TAB>memo. No other text.\n")
	if len(proj.Config.Topics()) > 0 {
		sb.WriteString("Prefer these topics when a fact fits one: ")
		names := make([]string, 0, len(proj.Config.Topics()))
		for _, t := range proj.Config.Topics() {
			names = append(names, t.Topic)
		}
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString(".\n")
	}
	if len(existing) > 0 {
		sb.WriteString(fmt.Sprintf("The user already has %d known profile slots; only extract new or changed facts.\n", len(existing)))
	}
	if proj.Config.Language == project.LanguageZH {
		sb.WriteString("Write memo text in Chinese.\n")
	}
	return sb.String()
}

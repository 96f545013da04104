package pipeline

import (
	"context"
	"fmt"

	"github.com/memobase-dev/memobase-go/event"
	"github.com/memobase-dev/memobase-go/llmgateway"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/prompt"
)

// eventPath runs summarize-chat and, if the project declares a tag
// taxonomy, event-tag (§4.7). It never fails the flush: any error here
// just means the committed event carries less metadata.
func (p *Pipeline) eventPath(ctx context.Context, proj *project.Project, transcript string, transcriptTokens int, deltaPreview string) (string, []event.Tag) {
	if !proj.Config.EnableEventSummary || transcriptTokens < proj.Config.MinEventSummaryTokens {
		return "", nil
	}

	system := summarizeChatSystemPrompt(proj)
	out, err := p.Gateway.Complete(ctx, proj.ID, transcript, system, llmgateway.Options{PromptID: "summarize-chat"})
	if err != nil {
		p.logger().Warn("pipeline: summarize-chat call failed project=%s: %v", proj.ID, err)
		return "", nil
	}
	tip, err := prompt.ParseSummarizeChat(out)
	if err != nil {
		p.logger().Warn("pipeline: summarize-chat output unparsable project=%s: %v", proj.ID, err)
		return "", nil
	}

	if len(proj.Config.EventTags) == 0 {
		return tip, nil
	}

	tags := p.eventTags(ctx, proj, tip, deltaPreview)
	return tip, tags
}

func (p *Pipeline) eventTags(ctx context.Context, proj *project.Project, tip, deltaPreview string) []event.Tag {
	system := eventTagSystemPrompt(proj)
	input := tip
	if deltaPreview != "" {
		input = tip + "\n\nProfile changes:\n" + deltaPreview
	}
	out, err := p.Gateway.Complete(ctx, proj.ID, input, system, llmgateway.Options{PromptID: "event-tag"})
	if err != nil {
		p.logger().Warn("pipeline: event-tag call failed project=%s: %v", proj.ID, err)
		return nil
	}
	parsed, err := prompt.ParseEventTags(out)
	if err != nil {
		p.logger().Warn("pipeline: event-tag output unparsable project=%s: %v", proj.ID, err)
		return nil
	}

	tags := make([]event.Tag, 0, len(parsed))
	for _, tv := range parsed {
		if !proj.Config.AllowedEventTag(tv.Tag) {
			continue
		}
		tags = append(tags, event.Tag{Tag: tv.Tag, Value: tv.Value})
	}
	return tags
}

func summarizeChatSystemPrompt(proj *project.Project) string {
	if proj.Config.Language == project.LanguageZH {
		return "用一到两句话概括这段对话中发生的事情。只回复概括内容。"
	}
	return "Summarize what happened in this conversation in one or two sentences. Reply with only the summary."
}

func eventTagSystemPrompt(proj *project.Project) string {
	names := make([]string, 0, len(proj.Config.EventTags))
	for _, t := range proj.Config.EventTags {
		names = append(names, t.Name)
	}
	return fmt.Sprintf(
		"Given an event summary, emit any applicable tags from this project's taxonomy: %v.\n"+
			"Reply with one tag<TAB>value pair per line, or nothing if none apply.", names,
	)
}

package pipeline

import (
	"context"
	"fmt"

	"github.com/memobase-dev/memobase-go/llmgateway"
	"github.com/memobase-dev/memobase-go/profile"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/prompt"
)

// resummarize compacts any add/update whose content grew past
// max_pre_profile_token_size (§4.7 "re-summarize"). A parse failure here
// leaves the long content as-is rather than aborting the commit — an
// oversized slot is acceptable, a lost slot is not.
func (p *Pipeline) resummarize(ctx context.Context, proj *project.Project, delta *profile.Delta) {
	limit := proj.Config.MaxPreProfileTokenSize
	if limit <= 0 {
		return
	}

	for i := range delta.Adds {
		if p.Counter.Count(delta.Adds[i].Content) <= limit {
			continue
		}
		if summarized, ok := p.summarizeProfile(ctx, proj, delta.Adds[i].Content); ok {
			delta.Adds[i].Content = summarized
		}
	}
	for i := range delta.Updates {
		if p.Counter.Count(delta.Updates[i].Content) <= limit {
			continue
		}
		if summarized, ok := p.summarizeProfile(ctx, proj, delta.Updates[i].Content); ok {
			delta.Updates[i].Content = summarized
		}
	}
}

func (p *Pipeline) summarizeProfile(ctx context.Context, proj *project.Project, content string) (string, bool) {
	system := fmt.Sprintf("Compress the following profile memo to at most %d tokens while preserving its facts. Reply with only the compressed text.", proj.Config.MaxPreProfileTokenSize)
	out, err := p.Gateway.Complete(ctx, proj.ID, content, system, llmgateway.Options{PromptID: "summarize-profile"})
	if err != nil {
		p.logger().Warn("pipeline: summarize-profile call failed project=%s: %v", proj.ID, err)
		return "", false
	}
	summarized, err := prompt.ParseSummarizeProfile(out)
	if err != nil {
		p.logger().Warn("pipeline: summarize-profile output unparsable project=%s: %v", proj.ID, err)
		return "", false
	}
	return summarized, true
}

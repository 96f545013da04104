package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/memobase-dev/memobase-go/event"
	"github.com/memobase-dev/memobase-go/llmgateway"
	"github.com/memobase-dev/memobase-go/profile"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/prompt"
)

// profilePath runs merge-or-validate, then organize, then re-summarize,
// producing the atomic delta the flush will commit (§4.7). It is safe to
// run concurrently with eventPath; it touches no shared state outside its
// own locals.
func (p *Pipeline) profilePath(ctx context.Context, proj *project.Project, userID string, existing []*profile.Slot, facts []prompt.Fact) (profile.Delta, []event.DeltaEntry) {
	var (
		mu    sync.Mutex
		delta profile.Delta
		sem   = make(chan struct{}, p.concurrency())
		wg    sync.WaitGroup
	)

	for _, fact := range facts {
		fact := fact
		attrs := profile.Attrs{Topic: fact.Topic, SubTopic: fact.SubTopic}
		if err := attrs.Validate(); err != nil {
			p.logger().Warn("pipeline: dropping invalid fact project=%s: %v", proj.ID, err)
			continue
		}
		if proj.Config.ProfileStrictMode && !proj.Config.Allowed(attrs.Topic, attrs.SubTopic) {
			p.logger().Info("pipeline: dropping out-of-taxonomy fact project=%s topic=%s::%s", proj.ID, attrs.Topic, attrs.SubTopic)
			continue
		}

		match := profile.Find(existing, attrs.Topic, attrs.SubTopic)

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if match == nil {
				mu.Lock()
				delta.Adds = append(delta.Adds, profile.NewSlot{Content: fact.Memo, Attrs: attrs})
				mu.Unlock()
				return
			}

			outcome, err := p.merge(ctx, proj, match, fact)
			if err != nil {
				p.logger().Warn("pipeline: merge call failed project=%s slot=%s: %v", proj.ID, match.ID, err)
				return
			}
			if !outcome.Update {
				return
			}
			memo := outcome.Memo
			if limit := proj.Config.MaxPreProfileTokenSize; limit > 0 && p.Counter.Count(memo) > limit {
				// §4.7 tie-break: an overly long merge result is re-summarized
				// inline, not left for the generic resummarize pass — and if
				// that inline summarize fails, the update is dropped rather
				// than committed oversized.
				summarized, ok := p.summarizeProfile(ctx, proj, memo)
				if !ok {
					p.logger().Warn("pipeline: dropping overly long merge update project=%s slot=%s", proj.ID, match.ID)
					return
				}
				memo = summarized
			}
			mu.Lock()
			delta.Updates = append(delta.Updates, profile.UpdateSlot{
				ID:      match.ID,
				Content: memo,
				Attrs:   &profile.Attrs{Topic: attrs.Topic, SubTopic: attrs.SubTopic, UpdateHits: match.Attrs.UpdateHits + 1},
			})
			mu.Unlock()
		}()
	}
	wg.Wait()

	p.organize(ctx, proj, existing, &delta)
	p.resummarize(ctx, proj, &delta)

	preview := make([]event.DeltaEntry, 0, len(delta.Adds)+len(delta.Updates)+len(delta.Deletes))
	for _, a := range delta.Adds {
		preview = append(preview, event.DeltaEntry{Topic: a.Attrs.Topic, SubTopic: a.Attrs.SubTopic, Action: event.ActionAdd})
	}
	for _, u := range delta.Updates {
		if u.Attrs != nil {
			preview = append(preview, event.DeltaEntry{Topic: u.Attrs.Topic, SubTopic: u.Attrs.SubTopic, Action: event.ActionUpdate})
		}
	}
	for _, id := range delta.Deletes {
		preview = append(preview, event.DeltaEntry{SlotID: id, Action: event.ActionDelete})
	}
	return delta, preview
}

// merge asks the model whether fact.Memo should replace an existing
// slot's content, or be discarded as already covered (§4.7 "merge").
func (p *Pipeline) merge(ctx context.Context, proj *project.Project, existing *profile.Slot, fact prompt.Fact) (prompt.MergeOutcome, error) {
	system := mergeSystemPrompt(proj, existing)
	out, err := p.Gateway.Complete(ctx, proj.ID, fact.Memo, system, llmgateway.Options{PromptID: "merge"})
	if err != nil {
		return prompt.MergeOutcome{}, err
	}
	return prompt.ParseMerge(out)
}

func mergeSystemPrompt(proj *project.Project, existing *profile.Slot) string {
	return fmt.Sprintf(
		"The user's current %s::%s memo is: %q\n"+
			"Given a new candidate fact, reply UPDATE<TAB><new memo text> if it adds "+
			"information not already covered, or ABORT<TAB>invalid if it is redundant "+
			"with the current memo. No other text.",
		existing.Attrs.Topic, existing.Attrs.SubTopic, existing.Content,
	)
}

// Package composer implements the context composer (C9): it turns a
// user's committed profile slots and event log into the single memory
// string a caller's prompt is built around, entirely through token-budget
// selection and template rendering — no LLM call is on the required path.
package composer

import (
	"context"
	"sort"

	"github.com/memobase-dev/memobase-go/event"
	"github.com/memobase-dev/memobase-go/profile"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/prompt"
	"github.com/memobase-dev/memobase-go/tokencount"
)

// DefaultProfileEventRatio is the fraction of max_tokens given to the
// profile half of the budget when Options.ProfileEventRatio is unset.
const DefaultProfileEventRatio = 0.8

// Options controls one composition call.
type Options struct {
	MaxTokens int

	OnlyTopics   []string // if non-empty, drop every slot not in this set
	PreferTopics []string // sort these topics first, in the given order

	TopicLimits     map[string]int // per-topic slot cap, overrides MaxSubtopicSize
	MaxSubtopicSize int            // default per-topic slot cap if TopicLimits doesn't name the topic

	ProfileEventRatio   float64 // default DefaultProfileEventRatio
	RequireEventSummary bool    // only include events with a non-empty tip

	// ChatTurns, if non-empty, triggers the optional chat-aware relevance
	// pre-filter (§4.9) ahead of budget selection, when Composer.Filter
	// is set.
	ChatTurns []string
}

func (o *Options) ratio() float64 {
	if o.ProfileEventRatio <= 0 || o.ProfileEventRatio >= 1 {
		return DefaultProfileEventRatio
	}
	return o.ProfileEventRatio
}

// Composer composes the memory context (§4.9) from a project's stores.
type Composer struct {
	Profiles profile.Store
	Events   event.Store
	Counter  *tokencount.Counter

	// Filter is the optional chat-aware relevance pre-filter. Nil means
	// every call uses the unfiltered slot set.
	Filter *ChatFilter
}

// Compose builds the rendered memory string for one user.
func (c *Composer) Compose(ctx context.Context, proj *project.Project, userID string, opts Options) (string, error) {
	profileBudget := int(float64(opts.MaxTokens) * opts.ratio())
	eventBudget := opts.MaxTokens - profileBudget

	slots, err := c.Profiles.List(ctx, proj.ID, userID)
	if err != nil {
		return "", err
	}
	if len(opts.ChatTurns) > 0 {
		slots = c.Filter.Filter(ctx, proj, slots, opts.ChatTurns)
	}
	renderedSlots := c.selectSlots(slots, opts, profileBudget)

	events, err := c.Events.List(ctx, proj.ID, userID, 40, eventBudget, opts.RequireEventSummary)
	if err != nil {
		return "", err
	}
	renderedEvents := c.selectEvents(events, eventBudget)

	return prompt.ContextPack(proj.Config.Language, renderedSlots, renderedEvents), nil
}

func inSet(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func preferenceRank(prefer []string, topic string) int {
	for i, t := range prefer {
		if t == topic {
			return i
		}
	}
	return len(prefer)
}

// selectSlots applies the only_topics filter, prefer_topics/updated_at
// ordering, per-topic cardinality cap, and token-budget truncation (§4.9
// step 2).
func (c *Composer) selectSlots(slots []*profile.Slot, opts Options, budget int) []prompt.RenderedSlot {
	filtered := make([]*profile.Slot, 0, len(slots))
	for _, s := range slots {
		if len(opts.OnlyTopics) > 0 && !inSet(opts.OnlyTopics, s.Attrs.Topic) {
			continue
		}
		filtered = append(filtered, s)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		ri, rj := preferenceRank(opts.PreferTopics, filtered[i].Attrs.Topic), preferenceRank(opts.PreferTopics, filtered[j].Attrs.Topic)
		if ri != rj {
			return ri < rj
		}
		return filtered[i].UpdatedAt.After(filtered[j].UpdatedAt)
	})

	perTopicCount := map[string]int{}
	var rendered []prompt.RenderedSlot
	used := 0
	for _, s := range filtered {
		limit := opts.MaxSubtopicSize
		if opts.TopicLimits != nil {
			if l, ok := opts.TopicLimits[s.Attrs.Topic]; ok {
				limit = l
			}
		}
		if limit > 0 && perTopicCount[s.Attrs.Topic] >= limit {
			continue
		}

		line := prompt.RenderSlot(s.Attrs.Topic, s.Attrs.SubTopic, s.Content)
		tokens := c.Counter.Count(line)
		if budget > 0 && used+tokens > budget {
			break
		}
		used += tokens
		perTopicCount[s.Attrs.Topic]++
		rendered = append(rendered, prompt.RenderedSlot{Topic: s.Attrs.Topic, SubTopic: s.Attrs.SubTopic, Content: s.Content})
	}
	return rendered
}

// selectEvents truncates the newest-first event list to the event token
// budget, rendering each as a dated tip with its profile_delta lines
// (§4.9 step 3).
func (c *Composer) selectEvents(events []*event.Event, budget int) []prompt.RenderedEvent {
	var rendered []prompt.RenderedEvent
	used := 0
	for _, ev := range events {
		lines := make([]string, 0, len(ev.ProfileDelta))
		for _, d := range ev.ProfileDelta {
			lines = append(lines, string(d.Action)+" "+d.Topic+"::"+d.SubTopic)
		}
		dated := ev.CreatedAt.Format("2006-01-02") + ": " + ev.EventTip

		tokens := c.Counter.Count(dated)
		for _, l := range lines {
			tokens += c.Counter.Count(l)
		}
		if budget > 0 && used+tokens > budget {
			break
		}
		used += tokens
		rendered = append(rendered, prompt.RenderedEvent{DatedTip: dated, ProfileLines: lines})
	}
	return rendered
}

// Package pipeline implements the consolidation pipeline (C7): the state
// machine a flush runs — truncate, extract, parallel profile-path /
// event-path, and a single atomic commit.
package pipeline

import (
	"context"
	"sync"

	"github.com/memobase-dev/memobase-go/blob"
	"github.com/memobase-dev/memobase-go/buffer"
	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/event"
	"github.com/memobase-dev/memobase-go/llmgateway"
	"github.com/memobase-dev/memobase-go/log"
	"github.com/memobase-dev/memobase-go/profile"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/scheduler"
	"github.com/memobase-dev/memobase-go/tokencount"
)

// Pipeline runs the consolidation state machine.
type Pipeline struct {
	Blobs    blob.Store
	Profiles profile.Store
	Events   event.Store
	Gateway  *llmgateway.Gateway
	Counter  *tokencount.Counter
	Logger   log.Logger

	// MaxMergeConcurrency bounds how many per-fact merge calls run at
	// once within one flush (§5: "per-fact merge calls... may run in
	// parallel").
	MaxMergeConcurrency int
}

func (p *Pipeline) logger() log.Logger {
	if p.Logger == nil {
		return &log.NoOpLogger{}
	}
	return p.Logger
}

func (p *Pipeline) concurrency() int {
	if p.MaxMergeConcurrency <= 0 {
		return 4
	}
	return p.MaxMergeConcurrency
}

// Flush runs the full pipeline over one batch of buffer entries. It is
// the scheduler.FlushFunc this package exposes.
func (p *Pipeline) Flush(ctx context.Context, proj *project.Project, userID string, t blob.Type, entries []*buffer.Entry, maxProcessTokens int) (*scheduler.Result, error) {
	kept, err := p.truncate(ctx, proj.ID, userID, entries, maxProcessTokens)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return nil, errs.New(errs.BadRequest, "EmptyBatch: truncation left no blobs to process")
	}

	transcript := renderTranscript(kept)
	transcriptTokens := p.Counter.Count(transcript)

	existing, err := p.Profiles.List(ctx, proj.ID, userID)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "pipeline: failed to load existing profile")
	}

	facts, err := p.extract(ctx, proj, transcript, existing)
	if err != nil {
		return nil, err
	}

	var (
		wg           sync.WaitGroup
		delta        profile.Delta
		deltaActions []event.DeltaEntry
		eventTip     string
		eventTags    []event.Tag
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		delta, deltaActions = p.profilePath(ctx, proj, userID, existing, facts)
	}()
	go func() {
		defer wg.Done()
		eventTip, eventTags = p.eventPath(ctx, proj, transcript, transcriptTokens, deltaSummary(deltaActions))
	}()
	wg.Wait()

	if delta.Empty() {
		return &scheduler.Result{}, nil
	}

	commit, err := p.Profiles.CommitDelta(ctx, proj.ID, userID, delta)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "pipeline: commit failed")
	}

	entriesForEvent := resolveDeltaEntries(delta, commit)
	evID, err := p.Events.Append(ctx, proj.ID, userID, &event.Event{
		EventTip:     eventTip,
		EventTags:    eventTags,
		ProfileDelta: entriesForEvent,
	})
	if err != nil {
		p.logger().Error("pipeline: commit succeeded but event append failed project=%s user=%s: %v", proj.ID, userID, err)
		return nil, errs.Wrap(errs.InternalError, err, "pipeline: event append failed")
	}

	return &scheduler.Result{
		EventID:    evID,
		AddedIDs:   commit.AddedIDs,
		UpdatedIDs: commit.UpdatedIDs,
		DeletedIDs: commit.DeletedIDs,
	}, nil
}

// resolveDeltaEntries zips the committed ids back onto the delta's
// (topic, sub_topic, action) shape for the event's profile_delta.
func resolveDeltaEntries(delta profile.Delta, commit *profile.CommitResult) []event.DeltaEntry {
	entries := make([]event.DeltaEntry, 0, len(commit.AddedIDs)+len(commit.UpdatedIDs)+len(commit.DeletedIDs))
	for i, id := range commit.AddedIDs {
		if i >= len(delta.Adds) {
			break
		}
		entries = append(entries, event.DeltaEntry{
			SlotID: id, Topic: delta.Adds[i].Attrs.Topic, SubTopic: delta.Adds[i].Attrs.SubTopic, Action: event.ActionAdd,
		})
	}
	for i, id := range commit.UpdatedIDs {
		if i >= len(delta.Updates) {
			break
		}
		topic, sub := "", ""
		if delta.Updates[i].Attrs != nil {
			topic, sub = delta.Updates[i].Attrs.Topic, delta.Updates[i].Attrs.SubTopic
		}
		entries = append(entries, event.DeltaEntry{SlotID: id, Topic: topic, SubTopic: sub, Action: event.ActionUpdate})
	}
	for _, id := range commit.DeletedIDs {
		entries = append(entries, event.DeltaEntry{SlotID: id, Action: event.ActionDelete})
	}
	return entries
}

func deltaSummary(entries []event.DeltaEntry) string {
	var sb []byte
	for _, e := range entries {
		sb = append(sb, []byte(string(e.Action)+" "+e.Topic+"::"+e.SubTopic+"\n")...)
	}
	return string(sb)
}

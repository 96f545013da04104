// Package profile models the profile slot (C2): a per-user (topic,
// sub_topic) fact whose content evolves under merge and organize.
package profile

import (
	"context"
	"strings"
	"time"

	"github.com/memobase-dev/memobase-go/errs"
)

// Attrs are a slot's structured attributes.
type Attrs struct {
	Topic      string
	SubTopic   string
	UpdateHits int
}

// Slot is one profile fact.
type Slot struct {
	ID        string
	ProjectID string
	UserID    string
	Attrs     Attrs
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSlot describes a slot to be created by AddMany/CommitDelta.
type NewSlot struct {
	Content string
	Attrs   Attrs
}

// UpdateSlot describes a mutation to an existing slot. Attrs is nil when
// only content changes; the merge path always sets it, carrying the
// incremented update_hits.
type UpdateSlot struct {
	ID      string
	Content string
	Attrs   *Attrs
}

// Delta is the atomic add/update/delete set a flush commits.
type Delta struct {
	Adds    []NewSlot
	Updates []UpdateSlot
	Deletes []string
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.Adds) == 0 && len(d.Updates) == 0 && len(d.Deletes) == 0
}

// CommitResult is the outcome of a committed delta.
type CommitResult struct {
	AddedIDs   []string
	UpdatedIDs []string
	DeletedIDs []string
}

// NormalizeTopic lower-cases s and collapses whitespace to "_".
func NormalizeTopic(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

// Validate checks the §4.2 invariant that topic and sub_topic are
// non-empty, and normalizes them in place. Rejection is InvalidProfile,
// reported as errs.BadRequest.
func (a *Attrs) Validate() error {
	a.Topic = NormalizeTopic(a.Topic)
	a.SubTopic = NormalizeTopic(a.SubTopic)
	if a.Topic == "" || a.SubTopic == "" {
		return errs.New(errs.BadRequest, "InvalidProfile: topic and sub_topic must be non-empty")
	}
	return nil
}

// Store persists profile slots and names only the source of truth. The
// separate slot cache (store/redis.ProfileCache) is not part of it; the
// facade reads through that cache and invalidates it after a flush.
type Store interface {
	List(ctx context.Context, projectID, userID string) ([]*Slot, error)
	AddMany(ctx context.Context, projectID, userID string, news []NewSlot) ([]string, error)
	UpdateMany(ctx context.Context, projectID, userID string, updates []UpdateSlot) error
	DeleteMany(ctx context.Context, projectID, userID string, ids []string) error
	CommitDelta(ctx context.Context, projectID, userID string, delta Delta) (*CommitResult, error)
	DeleteUser(ctx context.Context, projectID, userID string) error
}

// CountByTopic groups slots by normalized topic and returns counts. The
// pipeline's organize step does its own per-topic count and does not call it.
func CountByTopic(slots []*Slot) map[string]int {
	counts := make(map[string]int)
	for _, s := range slots {
		counts[s.Attrs.Topic]++
	}
	return counts
}

// Find returns the slot matching (topic, subTopic), if any.
func Find(slots []*Slot, topic, subTopic string) *Slot {
	for _, s := range slots {
		if s.Attrs.Topic == topic && s.Attrs.SubTopic == subTopic {
			return s
		}
	}
	return nil
}

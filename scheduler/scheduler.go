// Package scheduler implements the flush scheduler (C8): per-user
// serialization via a coordination-store lock, a per-user FIFO work
// queue for background flushes, and a best-effort background worker.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/memobase-dev/memobase-go/blob"
	"github.com/memobase-dev/memobase-go/buffer"
	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/log"
)

// Coordinator is the distributed-lock and FIFO-queue primitive the
// scheduler needs from the coordination store (implemented by
// store/redis.Store).
type Coordinator interface {
	// Lock attempts to acquire key for ttl. ok is false if another holder
	// currently has it. token identifies this holder for Renew/Unlock.
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Renew(ctx context.Context, key, token string, ttl time.Duration) error
	// Unlock is a no-op (not an error) if token no longer matches the
	// current holder, satisfying the compare-and-delete requirement.
	Unlock(ctx context.Context, key, token string) error
	PushQueue(ctx context.Context, key, item string) error
	PopQueue(ctx context.Context, key string) (item string, ok bool, err error)
}

// Result is the opaque outcome of one flush, returned by FlushFunc and
// passed back to synchronous callers.
type Result struct {
	EventID    string
	AddedIDs   []string
	UpdatedIDs []string
	DeletedIDs []string
}

// FlushFunc runs the consolidation pipeline over one batch of buffer
// entries. It must not mark the entries done/failed; the scheduler does
// that based on the returned error, per §4.7's failure semantics.
type FlushFunc func(ctx context.Context, projectID, userID string, t blob.Type, entries []*buffer.Entry) (*Result, error)

// Config tunes the scheduler's background worker (§4.8).
type Config struct {
	LockTTL              time.Duration
	MaxIterations        int
	MaxTotalTime         time.Duration
	MaxConsecutiveErrors int
}

func (c *Config) applyDefaults() {
	if c.LockTTL <= 0 {
		c.LockTTL = 2 * time.Minute
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 50
	}
	if c.MaxTotalTime <= 0 {
		c.MaxTotalTime = 10 * time.Minute
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = 3
	}
}

// Scheduler is the flush scheduler.
type Scheduler struct {
	buffers buffer.Store
	coord   Coordinator
	flush   FlushFunc
	cfg     Config
	logger  log.Logger
}

// New builds a Scheduler.
func New(buffers buffer.Store, coord Coordinator, flush FlushFunc, cfg Config, logger log.Logger) *Scheduler {
	cfg.applyDefaults()
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &Scheduler{buffers: buffers, coord: coord, flush: flush, cfg: cfg, logger: logger}
}

func lockKey(projectID, userID string, t blob.Type) string {
	return fmt.Sprintf("lock:%s:%s:%s:flush", projectID, userID, t)
}

func queueKey(projectID, userID string, t blob.Type) string {
	return fmt.Sprintf("queue:%s:%s:%s", projectID, userID, t)
}

func idsOf(entries []*buffer.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// CheckSizeTrigger runs the §4.8 trigger #1 check after a blob insert: if
// the idle token sum exceeds maxBufferTokens, it selects and marks the
// idle batch processing and either runs it synchronously (wait=true) or
// hands it to the background worker (wait=false). It returns (nil, nil)
// if no trigger fired.
func (s *Scheduler) CheckSizeTrigger(ctx context.Context, projectID, userID string, t blob.Type, maxBufferTokens int, wait bool) (*Result, error) {
	sum, err := s.buffers.TokenSum(ctx, projectID, userID, t, buffer.StatusIdle)
	if err != nil {
		return nil, err
	}
	if sum <= maxBufferTokens {
		return nil, nil
	}
	return s.selectAndDispatch(ctx, projectID, userID, t, wait)
}

// FlushNow is the explicit trigger (§4.8 trigger #2): flush whatever is
// currently idle, regardless of size.
func (s *Scheduler) FlushNow(ctx context.Context, projectID, userID string, t blob.Type, wait bool) (*Result, error) {
	return s.selectAndDispatch(ctx, projectID, userID, t, wait)
}

func (s *Scheduler) selectAndDispatch(ctx context.Context, projectID, userID string, t blob.Type, wait bool) (*Result, error) {
	entries, err := s.buffers.PendingIDs(ctx, projectID, userID, t, buffer.StatusIdle)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errs.New(errs.BadRequest, "EmptyBatch: no idle entries to flush")
	}
	ids := idsOf(entries)
	if err := s.buffers.Mark(ctx, projectID, userID, ids, buffer.StatusProcessing); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "scheduler: failed to mark batch processing")
	}

	if wait {
		return s.runLocked(ctx, projectID, userID, t, entries)
	}

	if err := s.coord.PushQueue(ctx, queueKey(projectID, userID, t), strings.Join(ids, ",")); err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "scheduler: failed to enqueue batch")
	}
	go s.runBackground(context.Background(), projectID, userID, t)
	return nil, nil
}

// runLocked acquires the per-user lock and runs exactly one batch
// synchronously (§4.8 "Synchronous mode").
func (s *Scheduler) runLocked(ctx context.Context, projectID, userID string, t blob.Type, entries []*buffer.Entry) (*Result, error) {
	key := lockKey(projectID, userID, t)
	token, ok, err := s.coord.Lock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "scheduler: lock acquisition failed")
	}
	if !ok {
		return nil, errs.New(errs.Conflict, "a flush is already in progress for this user")
	}
	defer s.release(key, token)

	return s.runBatch(ctx, projectID, userID, t, entries)
}

func (s *Scheduler) runBatch(ctx context.Context, projectID, userID string, t blob.Type, entries []*buffer.Entry) (*Result, error) {
	ids := idsOf(entries)
	result, err := s.flush(ctx, projectID, userID, t, entries)
	if err != nil {
		if markErr := s.buffers.Mark(ctx, projectID, userID, ids, buffer.StatusFailed); markErr != nil {
			s.logger.Error("scheduler: failed to mark batch failed project=%s user=%s: %v", projectID, userID, markErr)
		}
		return nil, err
	}
	if markErr := s.buffers.Mark(ctx, projectID, userID, ids, buffer.StatusDone); markErr != nil {
		s.logger.Error("scheduler: failed to mark batch done project=%s user=%s: %v", projectID, userID, markErr)
	}
	return result, nil
}

func (s *Scheduler) release(key, token string) {
	if err := s.coord.Unlock(context.Background(), key, token); err != nil {
		s.logger.Warn("scheduler: failed to release lock key=%s: %v", key, err)
	}
}

// runBackground drains the per-user queue one batch at a time, up to
// MaxIterations or MaxTotalTime, stopping early after MaxConsecutiveErrors
// (§4.8 "Background mode"). If the lock is already held, another worker
// is draining the queue and this one exits immediately.
func (s *Scheduler) runBackground(ctx context.Context, projectID, userID string, t blob.Type) {
	key := lockKey(projectID, userID, t)
	qkey := queueKey(projectID, userID, t)

	token, ok, err := s.coord.Lock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.logger.Error("scheduler: background lock acquisition failed key=%s: %v", key, err)
		return
	}
	if !ok {
		return
	}
	defer s.release(key, token)

	deadline := time.Now().Add(s.cfg.MaxTotalTime)
	consecutiveErrors := 0

	for i := 0; i < s.cfg.MaxIterations && time.Now().Before(deadline); i++ {
		item, ok, err := s.coord.PopQueue(ctx, qkey)
		if err != nil {
			s.logger.Error("scheduler: queue pop failed key=%s: %v", qkey, err)
			consecutiveErrors++
			if consecutiveErrors >= s.cfg.MaxConsecutiveErrors {
				return
			}
			continue
		}
		if !ok {
			return // queue drained
		}

		ids := strings.Split(item, ",")
		entries, err := s.buffers.Get(ctx, projectID, userID, ids)
		if err != nil {
			s.logger.Error("scheduler: failed to load batch entries: %v", err)
			consecutiveErrors++
			if consecutiveErrors >= s.cfg.MaxConsecutiveErrors {
				return
			}
			continue
		}

		if _, err := s.runBatch(ctx, projectID, userID, t, entries); err != nil {
			s.logger.Warn("scheduler: background batch failed project=%s user=%s: %v", projectID, userID, err)
			consecutiveErrors++
			if consecutiveErrors >= s.cfg.MaxConsecutiveErrors {
				s.logger.Error("scheduler: stopping background worker after %d consecutive errors", consecutiveErrors)
				return
			}
			continue
		}
		consecutiveErrors = 0

		if err := s.coord.Renew(ctx, key, token, s.cfg.LockTTL); err != nil {
			s.logger.Warn("scheduler: failed to renew lock key=%s: %v", key, err)
		}
	}
}

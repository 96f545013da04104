package memobase

import (
	"context"

	"github.com/memobase-dev/memobase-go/blob"
	"github.com/memobase-dev/memobase-go/buffer"
	"github.com/memobase-dev/memobase-go/composer"
	"github.com/memobase-dev/memobase-go/event"
	"github.com/memobase-dev/memobase-go/llmgateway"
	"github.com/memobase-dev/memobase-go/log"
	"github.com/memobase-dev/memobase-go/pipeline"
	"github.com/memobase-dev/memobase-go/profile"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/scheduler"
	"github.com/memobase-dev/memobase-go/tokencount"
	"github.com/memobase-dev/memobase-go/userstatus"
)

// ProfileCache is the read-through cache the facade invalidates after
// every commit, satisfied by store/redis.ProfileCache.
type ProfileCache interface {
	Get(ctx context.Context, projectID, userID string) ([]*profile.Slot, bool, error)
	Set(ctx context.Context, projectID, userID string, slots []*profile.Slot) error
	Invalidate(ctx context.Context, projectID, userID string) error
}

// Config wires every collaborator the facade needs. Blobs/Profiles/
// Events/Buffers/UserStatuses/Projects are commonly all backed by one
// store/postgres.Store's accessor methods; Coord by a store/redis.Store.
type Config struct {
	Blobs        blob.Store
	Profiles     profile.Store
	Events       event.Store
	Buffers      buffer.Store
	UserStatuses userstatus.Store
	Projects     project.Store

	Coord scheduler.Coordinator
	Cache ProfileCache // optional

	Gateway *llmgateway.Gateway
	Counter *tokencount.Counter // optional, defaults to tokencount.MustDefault()
	Logger  log.Logger          // optional

	MaxMergeConcurrency int
	Scheduler           scheduler.Config
}

// Service is the facade over the full consolidation + composition stack.
type Service struct {
	cfg      Config
	pipe     *pipeline.Pipeline
	sched    *scheduler.Scheduler
	composer *composer.Composer
	logger   log.Logger
}

// New wires a Service from cfg.
func New(cfg Config) *Service {
	if cfg.Counter == nil {
		cfg.Counter = tokencount.MustDefault()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &log.NoOpLogger{}
	}

	pipe := &pipeline.Pipeline{
		Blobs:               cfg.Blobs,
		Profiles:            cfg.Profiles,
		Events:              cfg.Events,
		Gateway:             cfg.Gateway,
		Counter:             cfg.Counter,
		Logger:              logger,
		MaxMergeConcurrency: cfg.MaxMergeConcurrency,
	}

	svc := &Service{cfg: cfg, pipe: pipe, logger: logger}

	flush := func(ctx context.Context, projectID, userID string, t blob.Type, entries []*buffer.Entry) (*scheduler.Result, error) {
		proj, err := cfg.Projects.Get(ctx, projectID)
		if err != nil {
			return nil, err
		}
		result, err := pipe.Flush(ctx, proj, userID, t, entries, proj.Config.MaxProcessTokens)
		if err != nil {
			return nil, err
		}
		if cfg.Cache != nil {
			if err := cfg.Cache.Invalidate(ctx, projectID, userID); err != nil {
				logger.Warn("memobase: failed to invalidate profile cache project=%s user=%s: %v", projectID, userID, err)
			}
		}
		return result, nil
	}

	svc.sched = scheduler.New(cfg.Buffers, cfg.Coord, flush, cfg.Scheduler, logger)
	svc.composer = &composer.Composer{Profiles: cfg.Profiles, Events: cfg.Events, Counter: cfg.Counter}

	return svc
}

// InsertBlob stores b, enqueues it for consolidation, and runs the §4.8
// size trigger. If wait is true and the trigger fires, the flush runs
// synchronously and its result is returned; otherwise result is nil and
// any triggered flush runs in the background.
func (s *Service) InsertBlob(ctx context.Context, projectID, userID string, b *blob.Blob, wait bool) (blobID string, result *scheduler.Result, err error) {
	proj, err := s.cfg.Projects.Get(ctx, projectID)
	if err != nil {
		return "", nil, err
	}

	blobID, err = s.cfg.Blobs.PutBlob(ctx, projectID, userID, b)
	if err != nil {
		return "", nil, err
	}

	tokenSize := s.cfg.Counter.Count(b.Render())
	if _, err := s.cfg.Buffers.Enqueue(ctx, projectID, userID, b.Type, blobID, tokenSize); err != nil {
		return blobID, nil, err
	}

	result, err = s.sched.CheckSizeTrigger(ctx, projectID, userID, b.Type, proj.Config.MaxBufferTokens, wait)
	return blobID, result, err
}

// Flush triggers an explicit flush of whatever is currently idle for
// (projectID, userID, t) — §4.8 trigger #2.
func (s *Service) Flush(ctx context.Context, projectID, userID string, t blob.Type, wait bool) (*scheduler.Result, error) {
	return s.sched.FlushNow(ctx, projectID, userID, t, wait)
}

// GetContext composes the memory context for a user from the profile and
// event stores. It does not read the profile cache, and the Service's
// composer has no chat-aware pre-filter, so opts.ChatTurns has no effect.
func (s *Service) GetContext(ctx context.Context, projectID, userID string, opts composer.Options) (string, error) {
	proj, err := s.cfg.Projects.Get(ctx, projectID)
	if err != nil {
		return "", err
	}
	return s.composer.Compose(ctx, proj, userID, opts)
}

// Profile returns a user's current profile slots, serving from cache when
// configured and falling back to the store on a miss.
func (s *Service) Profile(ctx context.Context, projectID, userID string) ([]*profile.Slot, error) {
	if s.cfg.Cache != nil {
		if slots, ok, err := s.cfg.Cache.Get(ctx, projectID, userID); err == nil && ok {
			return slots, nil
		}
	}
	slots, err := s.cfg.Profiles.List(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.Set(ctx, projectID, userID, slots); err != nil {
			s.logger.Warn("memobase: failed to populate profile cache project=%s user=%s: %v", projectID, userID, err)
		}
	}
	return slots, nil
}

// DeleteUser tears down every piece of a user's data across all stores.
func (s *Service) DeleteUser(ctx context.Context, projectID, userID string) error {
	if err := s.cfg.Profiles.DeleteUser(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.cfg.Events.DeleteUser(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.cfg.Buffers.DeleteUser(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.cfg.Blobs.DeleteUserBlobs(ctx, projectID, userID); err != nil {
		return err
	}
	if s.cfg.UserStatuses != nil {
		if err := s.cfg.UserStatuses.DeleteUser(ctx, projectID, userID); err != nil {
			return err
		}
	}
	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.Invalidate(ctx, projectID, userID); err != nil {
			s.logger.Warn("memobase: failed to invalidate profile cache on user delete project=%s user=%s: %v", projectID, userID, err)
		}
	}
	return nil
}

// PutProjectConfig parses and stores a project's profile_config document.
func (s *Service) PutProjectConfig(ctx context.Context, projectID string, configDoc []byte) (*project.Project, error) {
	return s.cfg.Projects.Put(ctx, projectID, configDoc)
}

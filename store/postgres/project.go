package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/project"
)

// ProjectStore persists project configuration documents.
type ProjectStore struct{ pool DBPool }

// Projects returns the project config store view over this pool.
func (s *Store) Projects() *ProjectStore { return &ProjectStore{pool: s.pool} }

// Put parses and stores a project's profile_config document, creating
// the project if it doesn't exist yet or replacing its config if it does.
func (s *ProjectStore) Put(ctx context.Context, projectID string, configDoc []byte) (*project.Project, error) {
	cfg, err := project.ParseConfig(configDoc)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO projects (id, config, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config
	`, projectID, configDoc, now)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, err, "failed to store project config")
	}
	return &project.Project{ID: projectID, Config: cfg, CreatedAt: now}, nil
}

// Get loads a project by ID.
func (s *ProjectStore) Get(ctx context.Context, projectID string) (*project.Project, error) {
	var (
		configDoc []byte
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, `SELECT config, created_at FROM projects WHERE id = $1`, projectID).
		Scan(&configDoc, &createdAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.NotFound, "project %s not found", projectID)
		}
		return nil, errs.Wrap(errs.InternalError, err, "failed to load project")
	}
	cfg, err := project.ParseConfig(configDoc)
	if err != nil {
		return nil, err
	}
	return &project.Project{ID: projectID, Config: cfg, CreatedAt: createdAt}, nil
}

// Delete removes a project and its configuration. It does not cascade to
// the project's users' data; callers needing a full teardown compose this
// with each domain store's DeleteUser.
func (s *ProjectStore) Delete(ctx context.Context, projectID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return errs.Wrap(errs.InternalError, err, "failed to delete project")
	}
	return nil
}

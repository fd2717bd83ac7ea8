package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
)

const projectColumns = `id, owner_id, name, stage, is_active, progress_data, artifacts, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p                    domain.Project
		stage                string
		progressJSON         string
		artifactsJSON        string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &stage, &p.IsActive,
		&progressJSON, &artifactsJSON, &p.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Stage = domain.StageKey(stage)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	p.ProgressData = domain.ProgressData{}
	if progressJSON != "" {
		if err := json.Unmarshal([]byte(progressJSON), &p.ProgressData); err != nil {
			return nil, fmt.Errorf("decode progress_data of %s: %w", p.ID, err)
		}
	}
	if artifactsJSON != "" {
		if err := json.Unmarshal([]byte(artifactsJSON), &p.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts of %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

// GetProject retrieves a project by id.
func (s *SQLStore) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	row := s.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, projectID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("project", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan project row: %w", err)
	}
	return p, nil
}

// GetActiveProject retrieves the owner's active project.
func (s *SQLStore) GetActiveProject(ctx context.Context, ownerID string) (*domain.Project, error) {
	row := s.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE owner_id = ? AND is_active = ?`, ownerID, true)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("active project for user", ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan active project row: %w", err)
	}
	return p, nil
}

// ListProjects returns every project of the owner, oldest first.
func (s *SQLStore) ListProjects(ctx context.Context, ownerID string) ([]*domain.Project, error) {
	rows, err := s.query(ctx, `SELECT `+projectColumns+` FROM projects WHERE owner_id = ? ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer closeRows(rows, "list projects")

	var projects []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// CreateProject inserts p, deactivating the owner's previous active project first.
func (s *SQLStore) CreateProject(ctx context.Context, p *domain.Project) error {
	if p.ProgressData == nil {
		p.ProgressData = domain.ProgressData{}
	}
	progressJSON, err := json.Marshal(p.ProgressData)
	if err != nil {
		return fmt.Errorf("encode progress_data: %w", err)
	}
	artifactsJSON, err := json.Marshal(p.Artifacts)
	if err != nil {
		return fmt.Errorf("encode artifacts: %w", err)
	}
	if p.Version == 0 {
		p.Version = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create project: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback create project failed", "project_id", p.ID, "error", rbErr)
		}
	}()

	if p.IsActive {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE projects SET is_active = ?, version = version + 1, updated_at = ?
			WHERE owner_id = ? AND is_active = ?`),
			false, toMillis(p.CreatedAt), p.OwnerID, true,
		); err != nil {
			return mapWriteErr("deactivate previous project", err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.OwnerID, p.Name, string(p.Stage), p.IsActive,
		string(progressJSON), string(artifactsJSON), p.Version,
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	); err != nil {
		return mapWriteErr("insert project", err)
	}

	if err := tx.Commit(); err != nil {
		return mapWriteErr("commit create project", err)
	}
	return nil
}

// UpdateProgress writes stage and progress_data in one statement guarded by version.
func (s *SQLStore) UpdateProgress(ctx context.Context, projectID string, stage domain.StageKey, progress domain.ProgressData, expectedVersion int64) (int64, error) {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return 0, fmt.Errorf("encode progress_data: %w", err)
	}
	return s.casUpdate(ctx, "update progress", projectID, expectedVersion,
		`UPDATE projects SET stage = ?, progress_data = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(stage), string(progressJSON), toMillis(time.Now()), projectID, expectedVersion,
	)
}

// UpdateArtifacts writes the artifacts blob guarded by version.
func (s *SQLStore) UpdateArtifacts(ctx context.Context, projectID string, artifacts domain.Artifacts, expectedVersion int64) (int64, error) {
	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		return 0, fmt.Errorf("encode artifacts: %w", err)
	}
	return s.casUpdate(ctx, "update artifacts", projectID, expectedVersion,
		`UPDATE projects SET artifacts = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(artifactsJSON), toMillis(time.Now()), projectID, expectedVersion,
	)
}

func (s *SQLStore) casUpdate(ctx context.Context, op, projectID string, expectedVersion int64, query string, args ...any) (int64, error) {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, mapWriteErr(op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 1 {
		return expectedVersion + 1, nil
	}

	var exists int
	err = s.queryRow(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, projectID).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("%s existence check: %w", op, err)
	}
	if exists == 0 {
		return 0, domain.NotFound("project", projectID)
	}
	s.logger.Warn("optimistic lock failed", "op", op, "project_id", projectID, "expected_version", expectedVersion)
	return 0, fmt.Errorf("%s %s at version %d: %w", op, projectID, expectedVersion, domain.ErrConflict)
}

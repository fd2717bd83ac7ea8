package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// migrations are applied in order; index+1 is the schema version they produce.
// Every statement must run unchanged on SQLite and Postgres.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			xp BIGINT NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			streak_count INTEGER NOT NULL DEFAULT 0,
			streak_last_active TEXT,
			timezone TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			stage TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			progress_data TEXT NOT NULL DEFAULT '{}',
			artifacts TEXT NOT NULL DEFAULT '{}',
			version BIGINT NOT NULL DEFAULT 1,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_owner_active ON projects(owner_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_stage ON projects(stage)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_one_active ON projects(owner_id) WHERE is_active`,
		`CREATE TABLE IF NOT EXISTS xp_transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			source TEXT NOT NULL,
			source_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_user_created ON xp_transactions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_source ON xp_transactions(user_id, source, source_id)`,
		`CREATE TABLE IF NOT EXISTS checklist_items (
			stage TEXT NOT NULL,
			item_key TEXT NOT NULL,
			label TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			linked_tool TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (stage, item_key)
		)`,
		`CREATE TABLE IF NOT EXISTS levels (
			level INTEGER PRIMARY KEY,
			min_xp INTEGER NOT NULL,
			title TEXT NOT NULL,
			icon TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS achievements (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			xp_reward INTEGER NOT NULL DEFAULT 0,
			criteria_type TEXT NOT NULL,
			criteria_value TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS user_achievements (
			user_id TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			earned_at BIGINT NOT NULL,
			PRIMARY KEY (user_id, achievement_id)
		)`,
		`CREATE TABLE IF NOT EXISTS streak_freezes (
			user_id TEXT NOT NULL,
			week_start TEXT NOT NULL,
			used_at BIGINT NOT NULL,
			PRIMARY KEY (user_id, week_start)
		)`,
		`CREATE TABLE IF NOT EXISTS lessons (
			id TEXT PRIMARY KEY,
			stage TEXT NOT NULL,
			title TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			xp_reward INTEGER NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS lesson_completions (
			user_id TEXT NOT NULL,
			lesson_id TEXT NOT NULL,
			completed_at BIGINT NOT NULL,
			PRIMARY KEY (user_id, lesson_id)
		)`,
		`CREATE TABLE IF NOT EXISTS pitch_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL DEFAULT 0,
			feedback TEXT NOT NULL DEFAULT '',
			has_results BOOLEAN NOT NULL DEFAULT FALSE,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pitch_sessions_user ON pitch_sessions(user_id)`,
	},
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_meta (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_meta: %w", err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		for _, stmt := range migrations[i] {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration v%d: %w", version, err)
			}
		}
		if _, err := s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO schema_meta (name, value) VALUES ('schema_version', ?)
			ON CONFLICT (name) DO UPDATE SET value = excluded.value`),
			strconv.Itoa(version),
		); err != nil {
			return fmt.Errorf("record schema version %d: %w", version, err)
		}
		s.logger.Info("Applied migration", "version", version)
	}
	return nil
}

func (s *SQLStore) schemaVersion(ctx context.Context) (int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE name = 'schema_version'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return v, nil
}

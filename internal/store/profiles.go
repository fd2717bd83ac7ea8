package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
)

// GetProfile retrieves a profile by user id.
func (s *SQLStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p                    domain.Profile
		lastActive           sql.NullString
		createdAt, updatedAt int64
	)
	err := s.queryRow(ctx, `
		SELECT id, display_name, xp, level, streak_count, streak_last_active, timezone, created_at, updated_at
		FROM profiles WHERE id = ?`, userID,
	).Scan(&p.ID, &p.DisplayName, &p.XP, &p.Level, &p.StreakCount, &lastActive, &p.Timezone, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("profile", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}
	p.StreakLastActive = lastActive.String
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// EnsureProfile inserts p unless a profile with the same id exists.
func (s *SQLStore) EnsureProfile(ctx context.Context, p *domain.Profile) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.Level < 1 {
		p.Level = 1
	}
	_, err := s.insertOnce(ctx, "ensure profile", `
		INSERT INTO profiles (id, display_name, xp, level, streak_count, streak_last_active, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.DisplayName, p.XP, p.Level, p.StreakCount, nullString(p.StreakLastActive),
		p.Timezone, toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	return err
}

// AddXP increments xp in one statement and returns the new total.
func (s *SQLStore) AddXP(ctx context.Context, userID string, amount int) (int, error) {
	var xp int
	err := s.queryRow(ctx, `
		UPDATE profiles SET xp = xp + ?, updated_at = ?
		WHERE id = ?
		RETURNING xp`,
		amount, toMillis(time.Now()), userID,
	).Scan(&xp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFound("profile", userID)
	}
	if err != nil {
		return 0, mapWriteErr("add xp", err)
	}
	return xp, nil
}

// SetLevel stores the derived level.
func (s *SQLStore) SetLevel(ctx context.Context, userID string, level int) error {
	return s.updateProfile(ctx, "set level", userID, `UPDATE profiles SET level = ?, updated_at = ? WHERE id = ?`,
		level, toMillis(time.Now()), userID)
}

// SetStreak stores the streak counter and its last active date.
func (s *SQLStore) SetStreak(ctx context.Context, userID string, count int, lastActive string) error {
	return s.updateProfile(ctx, "set streak", userID, `UPDATE profiles SET streak_count = ?, streak_last_active = ?, updated_at = ? WHERE id = ?`,
		count, nullString(lastActive), toMillis(time.Now()), userID)
}

// SetStreakLastActive moves the last active date without touching the counter.
func (s *SQLStore) SetStreakLastActive(ctx context.Context, userID string, lastActive string) error {
	return s.updateProfile(ctx, "set streak last active", userID, `UPDATE profiles SET streak_last_active = ?, updated_at = ? WHERE id = ?`,
		nullString(lastActive), toMillis(time.Now()), userID)
}

// SetTimezone stores the user's IANA timezone name.
func (s *SQLStore) SetTimezone(ctx context.Context, userID string, timezone string) error {
	return s.updateProfile(ctx, "set timezone", userID, `UPDATE profiles SET timezone = ?, updated_at = ? WHERE id = ?`,
		timezone, toMillis(time.Now()), userID)
}

func (s *SQLStore) updateProfile(ctx context.Context, op, userID, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return mapWriteErr(op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.NotFound("profile", userID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

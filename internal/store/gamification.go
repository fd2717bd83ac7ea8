package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
)

// AppendXP writes one ledger entry.
func (s *SQLStore) AppendXP(ctx context.Context, tx *domain.XPTransaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO xp_transactions (id, user_id, amount, source, source_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Amount, string(tx.Source), tx.SourceID, tx.Description, toMillis(tx.CreatedAt),
	)
	if err != nil {
		return mapWriteErr("append xp", err)
	}
	return nil
}

// HasXP reports whether a grant with source and sourceID was already written.
func (s *SQLStore) HasXP(ctx context.Context, userID string, source domain.XPSource, sourceID string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `
		SELECT COUNT(*) FROM xp_transactions
		WHERE user_id = ? AND source = ? AND source_id = ?`,
		userID, string(source), sourceID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count xp grants: %w", err)
	}
	return n > 0, nil
}

// ListXP returns up to limit ledger entries, newest first. limit <= 0 means all.
func (s *SQLStore) ListXP(ctx context.Context, userID string, limit int) ([]domain.XPTransaction, error) {
	query := `
		SELECT id, user_id, amount, source, source_id, description, created_at
		FROM xp_transactions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query xp history: %w", err)
	}
	defer closeRows(rows, "list xp")

	var out []domain.XPTransaction
	for rows.Next() {
		var (
			tx        domain.XPTransaction
			source    string
			createdAt int64
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &source, &tx.SourceID, &tx.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan xp row: %w", err)
		}
		tx.Source = domain.XPSource(source)
		tx.CreatedAt = fromMillis(createdAt)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate xp history: %w", err)
	}
	return out, nil
}

// ListAchievements returns every achievement definition ordered by id.
func (s *SQLStore) ListAchievements(ctx context.Context) ([]domain.Achievement, error) {
	rows, err := s.query(ctx, `
		SELECT id, title, description, icon, xp_reward, criteria_type, criteria_value
		FROM achievements ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer closeRows(rows, "list achievements")

	var out []domain.Achievement
	for rows.Next() {
		var (
			a     domain.Achievement
			ctype string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Icon, &a.XPReward, &ctype, &a.Criteria.Value); err != nil {
			return nil, fmt.Errorf("scan achievement row: %w", err)
		}
		a.Criteria.Type = domain.CriteriaType(ctype)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}
	return out, nil
}

// ListUserAchievements returns every definition joined with the user's earned state.
func (s *SQLStore) ListUserAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error) {
	rows, err := s.query(ctx, `
		SELECT a.id, a.title, a.description, a.icon, a.xp_reward, a.criteria_type, a.criteria_value, ua.earned_at
		FROM achievements a
		LEFT JOIN user_achievements ua ON ua.achievement_id = a.id AND ua.user_id = ?
		ORDER BY a.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user achievements: %w", err)
	}
	defer closeRows(rows, "list user achievements")

	var out []domain.UserAchievement
	for rows.Next() {
		var (
			ua       domain.UserAchievement
			ctype    string
			earnedAt *int64
		)
		if err := rows.Scan(&ua.ID, &ua.Title, &ua.Description, &ua.Icon, &ua.XPReward, &ctype, &ua.Criteria.Value, &earnedAt); err != nil {
			return nil, fmt.Errorf("scan user achievement row: %w", err)
		}
		ua.Criteria.Type = domain.CriteriaType(ctype)
		ua.UserID = userID
		if earnedAt != nil {
			t := fromMillis(*earnedAt)
			ua.Earned = true
			ua.EarnedAt = &t
		}
		out = append(out, ua)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user achievements: %w", err)
	}
	return out, nil
}

// EarnAchievement records the unlock once.
func (s *SQLStore) EarnAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error) {
	return s.insertOnce(ctx, "earn achievement", `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		userID, achievementID, toMillis(at),
	)
}

// InsertStreakFreeze records a freeze for the week; false means it was already used.
func (s *SQLStore) InsertStreakFreeze(ctx context.Context, f domain.StreakFreeze) (bool, error) {
	return s.insertOnce(ctx, "insert streak freeze", `
		INSERT INTO streak_freezes (user_id, week_start, used_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, week_start) DO NOTHING`,
		f.UserID, f.WeekStart, toMillis(f.UsedAt),
	)
}

// HasStreakFreeze reports whether the week's freeze was spent.
func (s *SQLStore) HasStreakFreeze(ctx context.Context, userID, weekStart string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM streak_freezes WHERE user_id = ? AND week_start = ?`,
		userID, weekStart).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count streak freezes: %w", err)
	}
	return n > 0, nil
}

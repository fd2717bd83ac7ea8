package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
)

// CompleteLesson records a lesson completion once.
func (s *SQLStore) CompleteLesson(ctx context.Context, userID, lessonID string, at time.Time) (bool, error) {
	return s.insertOnce(ctx, "complete lesson", `
		INSERT INTO lesson_completions (user_id, lesson_id, completed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, lesson_id) DO NOTHING`,
		userID, lessonID, toMillis(at),
	)
}

// CompletedLessonIDs lists the lessons the user finished, in completion order.
func (s *SQLStore) CompletedLessonIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.query(ctx, `
		SELECT lesson_id FROM lesson_completions
		WHERE user_id = ? ORDER BY completed_at, lesson_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query lesson completions: %w", err)
	}
	defer closeRows(rows, "completed lessons")

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lesson completion: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lesson completions: %w", err)
	}
	return ids, nil
}

// CountCompletedLessons returns how many distinct lessons the user finished.
func (s *SQLStore) CountCompletedLessons(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM lesson_completions WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lesson completions: %w", err)
	}
	return n, nil
}

// InsertPitchSession stores a pitch-training run.
func (s *SQLStore) InsertPitchSession(ctx context.Context, ps *domain.PitchSession) error {
	if ps.CreatedAt.IsZero() {
		ps.CreatedAt = time.Now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO pitch_sessions (id, user_id, project_id, score, feedback, has_results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ps.ID, ps.UserID, ps.ProjectID, ps.Score, ps.Feedback, ps.HasResults, toMillis(ps.CreatedAt),
	)
	if err != nil {
		return mapWriteErr("insert pitch session", err)
	}
	return nil
}

// HasPitchResults reports whether any of the user's pitch sessions produced results.
func (s *SQLStore) HasPitchResults(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM pitch_sessions WHERE user_id = ? AND has_results = ?`,
		userID, true).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count pitch sessions: %w", err)
	}
	return n > 0, nil
}

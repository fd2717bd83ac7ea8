package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ashureev/launchpad/internal/catalog"
	"github.com/ashureev/launchpad/internal/domain"
)

// ListChecklistItems returns the stage's definitions ordered by sort_order.
func (s *SQLStore) ListChecklistItems(ctx context.Context, stage domain.StageKey) ([]domain.ChecklistItem, error) {
	rows, err := s.query(ctx, `
		SELECT stage, item_key, label, sort_order, linked_tool
		FROM checklist_items WHERE stage = ?
		ORDER BY sort_order, item_key`, string(stage))
	if err != nil {
		return nil, fmt.Errorf("query checklist items: %w", err)
	}
	defer closeRows(rows, "list checklist items")

	var out []domain.ChecklistItem
	for rows.Next() {
		var (
			it  domain.ChecklistItem
			key string
		)
		if err := rows.Scan(&key, &it.ItemKey, &it.Label, &it.SortOrder, &it.LinkedTool); err != nil {
			return nil, fmt.Errorf("scan checklist row: %w", err)
		}
		it.Stage = domain.StageKey(key)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checklist items: %w", err)
	}
	return out, nil
}

// ListLevels returns the level table ordered by min_xp descending.
func (s *SQLStore) ListLevels(ctx context.Context) ([]domain.Level, error) {
	rows, err := s.query(ctx, `SELECT level, min_xp, title, icon FROM levels ORDER BY min_xp DESC`)
	if err != nil {
		return nil, fmt.Errorf("query levels: %w", err)
	}
	defer closeRows(rows, "list levels")

	var out []domain.Level
	for rows.Next() {
		var l domain.Level
		if err := rows.Scan(&l.Level, &l.MinXP, &l.Title, &l.Icon); err != nil {
			return nil, fmt.Errorf("scan level row: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate levels: %w", err)
	}
	return out, nil
}

const lessonColumns = `id, stage, title, summary, xp_reward, sort_order`

func scanLesson(row rowScanner) (domain.Lesson, error) {
	var (
		l     domain.Lesson
		stage string
	)
	err := row.Scan(&l.ID, &stage, &l.Title, &l.Summary, &l.XPReward, &l.SortOrder)
	l.Stage = domain.StageKey(stage)
	return l, err
}

// ListLessons returns lessons of stage in sort order; an empty stage lists all.
func (s *SQLStore) ListLessons(ctx context.Context, stage domain.StageKey) ([]domain.Lesson, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if stage == "" {
		rows, err = s.query(ctx, `SELECT `+lessonColumns+` FROM lessons ORDER BY sort_order, id`)
	} else {
		rows, err = s.query(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE stage = ? ORDER BY sort_order, id`, string(stage))
	}
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer closeRows(rows, "list lessons")

	var out []domain.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson row: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return out, nil
}

// GetLesson retrieves one lesson.
func (s *SQLStore) GetLesson(ctx context.Context, lessonID string) (*domain.Lesson, error) {
	l, err := scanLesson(s.queryRow(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, lessonID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("lesson", lessonID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan lesson row: %w", err)
	}
	return &l, nil
}

// SeedCatalog upserts every reference row of c in one transaction.
func (s *SQLStore) SeedCatalog(ctx context.Context, c *catalog.Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed catalog: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback seed catalog failed", "error", rbErr)
		}
	}()

	exec := func(op, query string, args ...any) error {
		if _, err := tx.ExecContext(ctx, s.rebind(query), args...); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	for _, it := range c.Checklist {
		if err := exec("seed checklist item "+it.ItemKey, `
			INSERT INTO checklist_items (stage, item_key, label, sort_order, linked_tool)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (stage, item_key) DO UPDATE SET
				label = excluded.label, sort_order = excluded.sort_order, linked_tool = excluded.linked_tool`,
			string(it.Stage), it.ItemKey, it.Label, it.SortOrder, it.LinkedTool,
		); err != nil {
			return err
		}
	}
	for _, l := range c.Levels {
		if err := exec(fmt.Sprintf("seed level %d", l.Level), `
			INSERT INTO levels (level, min_xp, title, icon)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (level) DO UPDATE SET
				min_xp = excluded.min_xp, title = excluded.title, icon = excluded.icon`,
			l.Level, l.MinXP, l.Title, l.Icon,
		); err != nil {
			return err
		}
	}
	for _, a := range c.Achievements {
		if err := exec("seed achievement "+a.ID, `
			INSERT INTO achievements (id, title, description, icon, xp_reward, criteria_type, criteria_value)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				title = excluded.title, description = excluded.description, icon = excluded.icon,
				xp_reward = excluded.xp_reward, criteria_type = excluded.criteria_type,
				criteria_value = excluded.criteria_value`,
			a.ID, a.Title, a.Description, a.Icon, a.XPReward, string(a.Criteria.Type), a.Criteria.Value,
		); err != nil {
			return err
		}
	}
	for _, l := range c.Lessons {
		if err := exec("seed lesson "+l.ID, `
			INSERT INTO lessons (`+lessonColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				stage = excluded.stage, title = excluded.title, summary = excluded.summary,
				xp_reward = excluded.xp_reward, sort_order = excluded.sort_order`,
			l.ID, string(l.Stage), l.Title, l.Summary, l.XPReward, l.SortOrder,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed catalog: %w", err)
	}
	s.logger.Info("Seeded reference catalog",
		"checklist_items", len(c.Checklist),
		"levels", len(c.Levels),
		"achievements", len(c.Achievements),
		"lessons", len(c.Lessons),
	)
	return nil
}

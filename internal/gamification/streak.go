package gamification

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/metrics"
	"github.com/ashureev/launchpad/internal/store"
)

// DailyBonusXP is granted on every day the streak counter moves.
const DailyBonusXP = 5

// streakMilestones maps streak length in days to its bonus XP.
var streakMilestones = map[int]int{
	3:   15,
	7:   30,
	14:  50,
	30:  100,
	60:  200,
	100: 500,
}

// MilestoneBonus returns the bonus for hitting days exactly, or 0.
func MilestoneBonus(days int) int {
	return streakMilestones[days]
}

// StreakResult reports the outcome of UpdateStreak.
type StreakResult struct {
	StreakCount      int                      `json:"streakCount"`
	IsNewDay         bool                     `json:"isNewDay"`
	MilestoneReached bool                     `json:"milestoneReached"`
	Milestone        int                      `json:"milestone,omitempty"`
	XPBonus          int                      `json:"xpBonus"`
	StreakAtRisk     bool                     `json:"streakAtRisk"`
	CanFreeze        bool                     `json:"canFreeze"`
	Unlocked         []domain.UserAchievement `json:"unlockedAchievements,omitempty"`
}

// FreezeStatus reports whether a freeze may be spent now.
type FreezeStatus struct {
	CanFreeze    bool   `json:"canFreeze"`
	StreakAtRisk bool   `json:"streakAtRisk"`
	UsedThisWeek bool   `json:"usedThisWeek"`
	WeekStart    string `json:"weekStart"`
}

// FreezeResult reports a spent freeze.
type FreezeResult struct {
	StreakCount int    `json:"streakCount"`
	WeekStart   string `json:"weekStart"`
}

// StreakTracker maintains consecutive-day streaks in the user's timezone.
type StreakTracker struct {
	repo         store.Repository
	orchestrator *Orchestrator
	metrics      *metrics.Metrics
	defaultTZ    string
	logger       *slog.Logger
	now          Clock
}

// civilDays holds the user-local dates a streak decision needs.
type civilDays struct {
	today     string
	yesterday string
	weekStart string
}

func (t *StreakTracker) days(profile *domain.Profile) civilDays {
	local := t.now().In(profile.Location(t.defaultTZ))
	y, m, d := local.Date()
	// Noon avoids DST edges when stepping whole days.
	noon := time.Date(y, m, d, 12, 0, 0, 0, local.Location())
	offset := (int(noon.Weekday()) + 6) % 7
	return civilDays{
		today:     noon.Format(domain.DateLayout),
		yesterday: noon.AddDate(0, 0, -1).Format(domain.DateLayout),
		weekStart: noon.AddDate(0, 0, -offset).Format(domain.DateLayout),
	}
}

// UpdateStreak records activity for today.
//
// Same day is a no-op. Activity the day after the last active day extends the
// streak. A break with a freeze available leaves state untouched and reports
// the streak at risk. Anything else starts over at 1.
func (t *StreakTracker) UpdateStreak(ctx context.Context, userID string) (*StreakResult, error) {
	profile, err := t.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	days := t.days(profile)

	if profile.StreakLastActive == days.today {
		return &StreakResult{StreakCount: profile.StreakCount}, nil
	}

	var count int
	switch {
	case profile.StreakLastActive == days.yesterday:
		count = profile.StreakCount + 1
	case profile.StreakCount > 0 && profile.StreakLastActive != "":
		status, err := t.freezeStatus(ctx, profile, days)
		if err != nil {
			return nil, err
		}
		if status.CanFreeze {
			return &StreakResult{
				StreakCount:  profile.StreakCount,
				StreakAtRisk: true,
				CanFreeze:    true,
			}, nil
		}
		count = 1
	default:
		count = 1
	}

	if err := t.repo.SetStreak(ctx, userID, count, days.today); err != nil {
		return nil, fmt.Errorf("store streak: %w", err)
	}
	t.logger.Info("Streak updated", "user_id", userID, "streak", count, "date", days.today)

	res := &StreakResult{StreakCount: count, IsNewDay: true}
	res.XPBonus += t.grant(ctx, res, ActionRequest{
		UserID:      userID,
		Amount:      DailyBonusXP,
		Source:      domain.SourceStreak,
		SourceID:    days.today,
		Description: "Daily activity",
	})
	if bonus := MilestoneBonus(count); bonus > 0 {
		res.MilestoneReached = true
		res.Milestone = count
		res.XPBonus += t.grant(ctx, res, ActionRequest{
			UserID:      userID,
			Amount:      bonus,
			Source:      domain.SourceStreak,
			SourceID:    "milestone:" + strconv.Itoa(count),
			Description: fmt.Sprintf("%d-day streak", count),
		})
	}
	return res, nil
}

// grant runs a best-effort orchestrator action and returns the XP it added.
func (t *StreakTracker) grant(ctx context.Context, res *StreakResult, req ActionRequest) int {
	out, err := t.orchestrator.Action(ctx, req)
	if out != nil {
		res.Unlocked = mergeUnlocked(res.Unlocked, out.Unlocked)
	}
	if err != nil {
		t.metrics.RecordGamificationFailure("streak")
		t.logger.Error("Streak reward failed", "user_id", req.UserID, "source_id", req.SourceID, "error", err)
		if out == nil || out.XP == nil {
			return 0
		}
	}
	return req.Amount
}

// CheckStreakFreeze reports whether the streak is at risk and this week's
// freeze is still available.
func (t *StreakTracker) CheckStreakFreeze(ctx context.Context, userID string) (*FreezeStatus, error) {
	profile, err := t.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return t.freezeStatus(ctx, profile, t.days(profile))
}

func (t *StreakTracker) freezeStatus(ctx context.Context, profile *domain.Profile, days civilDays) (*FreezeStatus, error) {
	used, err := t.repo.HasStreakFreeze(ctx, profile.ID, days.weekStart)
	if err != nil {
		return nil, err
	}
	atRisk := profile.StreakCount > 0 &&
		profile.StreakLastActive != "" &&
		profile.StreakLastActive != days.today &&
		profile.StreakLastActive != days.yesterday
	return &FreezeStatus{
		CanFreeze:    atRisk && !used,
		StreakAtRisk: atRisk,
		UsedThisWeek: used,
		WeekStart:    days.weekStart,
	}, nil
}

// UseStreakFreeze spends this week's freeze, moving the last active date to
// yesterday so the next activity continues the streak.
func (t *StreakTracker) UseStreakFreeze(ctx context.Context, userID string) (*FreezeResult, error) {
	profile, err := t.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	days := t.days(profile)
	status, err := t.freezeStatus(ctx, profile, days)
	if err != nil {
		return nil, err
	}
	if status.UsedThisWeek {
		return nil, domain.ErrFreezeAlreadyUsed
	}
	if !status.StreakAtRisk {
		return nil, domain.ErrStreakNotAtRisk
	}

	inserted, err := t.repo.InsertStreakFreeze(ctx, domain.StreakFreeze{
		UserID:    userID,
		WeekStart: days.weekStart,
		UsedAt:    t.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record streak freeze: %w", err)
	}
	if !inserted {
		return nil, domain.ErrFreezeAlreadyUsed
	}
	if err := t.repo.SetStreakLastActive(ctx, userID, days.yesterday); err != nil {
		return nil, fmt.Errorf("store streak: %w", err)
	}
	t.logger.Info("Streak freeze used", "user_id", userID, "week_start", days.weekStart, "streak", profile.StreakCount)
	return &FreezeResult{StreakCount: profile.StreakCount, WeekStart: days.weekStart}, nil
}

func mergeUnlocked(dst, src []domain.UserAchievement) []domain.UserAchievement {
	for _, ua := range src {
		if !slices.ContainsFunc(dst, func(have domain.UserAchievement) bool { return have.ID == ua.ID }) {
			dst = append(dst, ua)
		}
	}
	return dst
}

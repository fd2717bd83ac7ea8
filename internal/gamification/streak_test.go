package gamification

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseTime is Wednesday 2025-03-12 in UTC.
const (
	today      = "2025-03-12"
	yesterday  = "2025-03-11"
	twoDaysAgo = "2025-03-10"
	weekStart  = "2025-03-10"
)

func TestUpdateStreak_ContinuesFromYesterday(t *testing.T) {
	f := newFixture(t, nil)
	f.profile(t, domain.Profile{ID: "u1", StreakCount: 5, StreakLastActive: yesterday})

	res, err := f.svc.Streaks.UpdateStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 6, res.StreakCount)
	assert.True(t, res.IsNewDay)
	assert.False(t, res.MilestoneReached)
	assert.Equal(t, DailyBonusXP, res.XPBonus)
	assert.False(t, res.StreakAtRisk)

	p := f.getProfile(t, "u1")
	assert.Equal(t, 6, p.StreakCount)
	assert.Equal(t, today, p.StreakLastActive)

	has, err := f.repo.HasXP(context.Background(), "u1", domain.SourceStreak, today)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestUpdateStreak_SameDayIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.profile(t, domain.Profile{ID: "u1"})

	first, err := f.svc.Streaks.UpdateStreak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.StreakCount)
	assert.True(t, first.IsNewDay)
	after := f.getProfile(t, "u1")

	f.clock.Advance(3 * time.Hour)
	second, err := f.svc.Streaks.UpdateStreak(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, second.IsNewDay)
	assert.Equal(t, 1, second.StreakCount)
	assert.Zero(t, second.XPBonus)

	again := f.getProfile(t, "u1")
	assert.Equal(t, after.StreakCount, again.StreakCount)
	assert.Equal(t, after.StreakLastActive, again.StreakLastActive)
	assert.Equal(t, after.XP, again.XP)
	assert.Equal(t, DailyBonusXP, again.XP)
}

func TestUpdateStreak_Milestone(t *testing.T) {
	f := newFixture(t, nil)
	f.profile(t, domain.Profile{ID: "u1", StreakCount: 2, StreakLastActive: yesterday})

	res, err := f.svc.Streaks.UpdateStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.StreakCount)
	assert.True(t, res.MilestoneReached)
	assert.Equal(t, 3, res.Milestone)
	assert.Equal(t, DailyBonusXP+15, res.XPBonus)

	has, err := f.repo.HasXP(context.Background(), "u1", domain.SourceStreak, "milestone:3")
	require.NoError(t, err)
	assert.True(t, has)

	var ids []string
	for _, ua := range res.Unlocked {
		ids = append(ids, ua.ID)
	}
	assert.Contains(t, ids, "streak_3")
}

func TestMilestoneBonus(t *testing.T) {
	for days, want := range map[int]int{3: 15, 7: 30, 14: 50, 30: 100, 60: 200, 100: 500, 6: 0, 1: 0, 101: 0} {
		assert.Equal(t, want, MilestoneBonus(days), "days=%d", days)
	}
}

func TestUpdateStreak_BrokenWithoutFreezeResets(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.profile(t, domain.Profile{ID: "u1", StreakCount: 7, StreakLastActive: twoDaysAgo})
	_, err := f.repo.InsertStreakFreeze(ctx, domain.StreakFreeze{UserID: "u1", WeekStart: weekStart, UsedAt: baseTime})
	require.NoError(t, err)

	res, err := f.svc.Streaks.UpdateStreak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.StreakCount)
	assert.True(t, res.IsNewDay)
	assert.Equal(t, DailyBonusXP, res.XPBonus)
	assert.False(t, res.StreakAtRisk)
}

func TestStreakFreeze_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.profile(t, domain.Profile{ID: "u1", StreakCount: 7, StreakLastActive: twoDaysAgo})

	status, err := f.svc.Streaks.CheckStreakFreeze(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, &FreezeStatus{CanFreeze: true, StreakAtRisk: true, WeekStart: weekStart}, status)

	// A break with a freeze available leaves state alone.
	res, err := f.svc.Streaks.UpdateStreak(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.StreakAtRisk)
	assert.True(t, res.CanFreeze)
	assert.Equal(t, 7, res.StreakCount)
	assert.Zero(t, res.XPBonus)
	p := f.getProfile(t, "u1")
	assert.Equal(t, twoDaysAgo, p.StreakLastActive)
	assert.Zero(t, p.XP)

	used, err := f.svc.Streaks.UseStreakFreeze(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, &FreezeResult{StreakCount: 7, WeekStart: weekStart}, used)
	p = f.getProfile(t, "u1")
	assert.Equal(t, yesterday, p.StreakLastActive)
	assert.Equal(t, 7, p.StreakCount)

	_, err = f.svc.Streaks.UseStreakFreeze(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrFreezeAlreadyUsed)
	assert.Equal(t, "streak freeze already used this week", err.Error())

	res, err = f.svc.Streaks.UpdateStreak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 8, res.StreakCount)
	assert.True(t, res.IsNewDay)
}

func TestUseStreakFreeze_NotAtRisk(t *testing.T) {
	f := newFixture(t, nil)
	f.profile(t, domain.Profile{ID: "u1", StreakCount: 4, StreakLastActive: yesterday})

	_, err := f.svc.Streaks.UseStreakFreeze(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrStreakNotAtRisk)

	status, err := f.svc.Streaks.CheckStreakFreeze(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, status.CanFreeze)
	assert.False(t, status.UsedThisWeek)
}

func TestStreakFreeze_NextWeekAvailableAgain(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.profile(t, domain.Profile{ID: "u1", StreakCount: 3, StreakLastActive: twoDaysAgo})

	_, err := f.svc.Streaks.UseStreakFreeze(ctx, "u1")
	require.NoError(t, err)

	// Skip to the following Tuesday with the streak broken again.
	f.clock.Advance(6 * 24 * time.Hour)
	require.NoError(t, f.repo.SetStreakLastActive(ctx, "u1", "2025-03-16"))

	status, err := f.svc.Streaks.CheckStreakFreeze(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-17", status.WeekStart)
	assert.True(t, status.CanFreeze)
}

func TestUpdateStreak_UsesUserTimezone(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Advance(13*time.Hour + 30*time.Minute) // 23:30 UTC, already the 13th in Tokyo
	f.profile(t, domain.Profile{ID: "tokyo", StreakCount: 2, StreakLastActive: today, Timezone: "Asia/Tokyo"})
	f.profile(t, domain.Profile{ID: "utc", StreakCount: 2, StreakLastActive: today})

	res, err := f.svc.Streaks.UpdateStreak(context.Background(), "tokyo")
	require.NoError(t, err)
	assert.True(t, res.IsNewDay)
	assert.Equal(t, 3, res.StreakCount)
	assert.Equal(t, "2025-03-13", f.getProfile(t, "tokyo").StreakLastActive)

	res, err = f.svc.Streaks.UpdateStreak(context.Background(), "utc")
	require.NoError(t, err)
	assert.False(t, res.IsNewDay)
	assert.Equal(t, 2, res.StreakCount)
}

func TestUpdateStreak_UnknownTimezoneFallsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.profile(t, domain.Profile{ID: "u1", StreakCount: 1, StreakLastActive: yesterday, Timezone: "Mars/Olympus"})

	res, err := f.svc.Streaks.UpdateStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.StreakCount)
}

func TestCivilDaysWeekStart(t *testing.T) {
	f := newFixture(t, nil)
	p := &domain.Profile{ID: "u1"}

	// Sunday belongs to the week that started the previous Monday.
	f.clock.Advance(4 * 24 * time.Hour)
	d := f.svc.Streaks.days(p)
	assert.Equal(t, "2025-03-16", d.today)
	assert.Equal(t, "2025-03-10", d.weekStart)

	f.clock.Advance(24 * time.Hour)
	d = f.svc.Streaks.days(p)
	assert.Equal(t, "2025-03-17", d.weekStart)
	assert.Equal(t, "2025-03-16", d.yesterday)
}

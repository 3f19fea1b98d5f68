package service

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/config"
	"credential-engagement-backend/utils"
)

func newTestStreak(t *testing.T, repo *fakeUserRepo, tz string) StreakService {
	t.Helper()
	ledger := NewGamificationService(repo, testAwards, nil, utils.NewNopLogger())
	svc, err := NewStreakService(ledger, config.StreakConfig{TimeZone: tz}, testAwards)
	if err != nil {
		t.Fatalf("NewStreakService: %v", err)
	}
	return svc
}

func day(n int, hour int) time.Time {
	return time.Date(2026, 1, 1, hour, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func TestTouchConsecutiveDays(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	svc := newTestStreak(t, repo, "UTC")
	u := repo.addUser("ayu")

	var res *StreakResult
	var err error
	for d := 1; d <= 3; d++ {
		res, err = svc.Touch(ctx, u.ID, day(d, 10))
		if err != nil {
			t.Fatalf("touch day %d: %v", d, err)
		}
	}
	if res.Current != 3 || res.Longest != 3 {
		t.Fatalf("streak: want=3/3 got=%d/%d", res.Current, res.Longest)
	}
	got, _ := repo.FindByID(ctx, u.ID)
	if got.Points != 3*testAwards.DailyLogin {
		t.Fatalf("daily login points: want=%d got=%d", 3*testAwards.DailyLogin, got.Points)
	}
}

func TestTouchGapResets(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	svc := newTestStreak(t, repo, "UTC")
	u := repo.addUser("budi")

	if _, err := svc.Touch(ctx, u.ID, day(1, 8)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	res, err := svc.Touch(ctx, u.ID, day(4, 8))
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if res.Current != 1 || res.Longest != 1 {
		t.Fatalf("after gap: want=1/1 got=%d/%d", res.Current, res.Longest)
	}
}

func TestTouchSkippedDayResets(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	svc := newTestStreak(t, repo, "UTC")
	u := repo.addUser("citra")

	// aktif hari N dan N+2, tidak pernah N+1
	for _, d := range []int{1, 2, 3, 5} {
		if _, err := svc.Touch(ctx, u.ID, day(d, 12)); err != nil {
			t.Fatalf("touch day %d: %v", d, err)
		}
	}
	got, _ := repo.FindByID(ctx, u.ID)
	if got.LearningStreak.Current != 1 || got.LearningStreak.Longest != 3 {
		t.Fatalf("streak: want=1/3 got=%d/%d", got.LearningStreak.Current, got.LearningStreak.Longest)
	}
}

func TestTouchSameDayNoDuplicateAward(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	svc := newTestStreak(t, repo, "UTC")
	u := repo.addUser("dewi")

	first, err := svc.Touch(ctx, u.ID, day(1, 1))
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	second, err := svc.Touch(ctx, u.ID, day(1, 23))
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !first.DailyLoginAwarded || second.DailyLoginAwarded {
		t.Fatalf("daily login: first=%v second=%v", first.DailyLoginAwarded, second.DailyLoginAwarded)
	}
	if second.Current != 1 {
		t.Fatalf("current: want=1 got=%d", second.Current)
	}

	logins := 0
	for _, a := range repo.achievementsOf(u.ID) {
		if a.Action == model.ActionDailyLogin {
			logins++
		}
	}
	if logins != 1 {
		t.Fatalf("daily login achievements: want=1 got=%d", logins)
	}
}

func TestTouchWeekMilestoneOnce(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	svc := newTestStreak(t, repo, "UTC")
	u := repo.addUser("eka")

	var res *StreakResult
	var err error
	for d := 1; d <= 7; d++ {
		res, err = svc.Touch(ctx, u.ID, day(d, 9))
		if err != nil {
			t.Fatalf("touch day %d: %v", d, err)
		}
	}
	if len(res.MilestoneBadges) != 1 || res.MilestoneBadges[0] != model.BadgeWeekWarrior {
		t.Fatalf("milestone: got=%v", res.MilestoneBadges)
	}

	// putus lalu mencapai 7 hari lagi: badge sudah dimiliki, tidak ada bonus kedua
	for d := 9; d <= 15; d++ {
		res, err = svc.Touch(ctx, u.ID, day(d, 9))
		if err != nil {
			t.Fatalf("touch day %d: %v", d, err)
		}
	}
	if len(res.MilestoneBadges) != 0 {
		t.Fatalf("second week milestone should be empty, got=%v", res.MilestoneBadges)
	}

	got, _ := repo.FindByID(ctx, u.ID)
	want := 14*testAwards.DailyLogin + testAwards.Streak7
	if got.Points != want {
		t.Fatalf("points: want=%d got=%d", want, got.Points)
	}
	if len(got.Badges) != 1 {
		t.Fatalf("badges: want=1 got=%d", len(got.Badges))
	}
}

func TestTouchUsesConfiguredTimezone(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	svc := newTestStreak(t, repo, "Asia/Jakarta")
	u := repo.addUser("fajar")

	// 20:00 UTC hari 1 = 03:00 WIB hari 2; 02:00 UTC hari 2 = 09:00 WIB hari 2
	if _, err := svc.Touch(ctx, u.ID, day(1, 20)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	res, err := svc.Touch(ctx, u.ID, day(2, 2))
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if res.DailyLoginAwarded || res.Current != 1 {
		t.Fatalf("same local day: awarded=%v current=%d", res.DailyLoginAwarded, res.Current)
	}
}

func TestDayDiff(t *testing.T) {
	a := time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	if got := dayDiff(a, b); got != 2 {
		t.Fatalf("dayDiff: want=2 got=%d", got)
	}
}

package service

import (
	"context"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/config"

	"github.com/google/uuid"
)

// StreakResult adalah state streak setelah touch.
type StreakResult struct {
	Current           int      `json:"current"`
	Longest           int      `json:"longest"`
	MilestoneBadges   []string `json:"milestoneBadges"`
	DailyLoginAwarded bool     `json:"dailyLoginAwarded"`
	PointsAwarded     int      `json:"pointsAwarded"`
	NewTotal          int      `json:"newTotal"`
	NewLevel          int      `json:"newLevel"`
}

// StreakService mencatat aktivitas harian user.
type StreakService interface {
	// Touch dipanggil setiap aktivitas user; hanya aktivitas pertama per hari yang mengubah state.
	Touch(ctx context.Context, userID uuid.UUID, now time.Time) (*StreakResult, error)
}

type streakMilestone struct {
	days   int
	badge  string
	amount int
}

type streakService struct {
	ledger     GamificationService
	loc        *time.Location
	milestones []streakMilestone
}

func NewStreakService(ledger GamificationService, cfg config.StreakConfig, awards config.AwardConfig) (StreakService, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, err
	}
	return &streakService{
		ledger: ledger,
		loc:    loc,
		milestones: []streakMilestone{
			{days: 7, badge: model.BadgeWeekWarrior, amount: awards.Streak7},
			{days: 30, badge: model.BadgeMonthlyMaster, amount: awards.Streak30},
		},
	}, nil
}

// dayOf memotong t ke awal hari kalender di loc.
func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// dayDiff menghitung selisih hari kalender (aman terhadap DST).
func dayDiff(today, last time.Time) int {
	a := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

func (s *streakService) Touch(ctx context.Context, userID uuid.UUID, now time.Time) (*StreakResult, error) {
	var (
		milestones []string
		daily      bool
		final      model.LearningStreak
	)

	res, err := s.ledger.Apply(ctx, userID, func(_ context.Context, tx *LedgerTx) error {
		milestones = nil
		daily = false

		st := tx.Streak()
		final = st
		today := dayOf(now, s.loc)

		if st.LastActive == nil {
			st.Current = 1
			if st.Longest < 1 {
				st.Longest = 1
			}
		} else {
			d := dayDiff(today, dayOf(*st.LastActive, s.loc))
			switch {
			case d <= 0:
				// sudah dihitung hari ini (atau jam mundur)
				return nil
			case d == 1:
				st.Current++
				if st.Current > st.Longest {
					st.Longest = st.Current
				}
			default:
				st.Current = 1
			}
		}

		lastActive := today.UTC()
		st.LastActive = &lastActive
		tx.SetStreak(st)
		final = st

		tx.AddPoints(model.ActionDailyLogin, s.ledger.AmountFor(model.ActionDailyLogin), defaultTitle(model.ActionDailyLogin), today.Format("2006-01-02"))
		daily = true

		for _, m := range s.milestones {
			if st.Current == m.days && tx.GrantBadge(m.badge) {
				tx.AddPoints(model.ActionStreakMilestone, m.amount, m.badge, "badge:"+m.badge)
				milestones = append(milestones, m.badge)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if milestones == nil {
		milestones = []string{}
	}
	return &StreakResult{
		Current:           final.Current,
		Longest:           final.Longest,
		MilestoneBadges:   milestones,
		DailyLoginAwarded: daily,
		PointsAwarded:     res.PointsAwarded,
		NewTotal:          res.NewTotal,
		NewLevel:          res.NewLevel,
	}, nil
}

package service

import (
	"context"
	"sort"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/app/repository"
	"credential-engagement-backend/config"
	"credential-engagement-backend/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

// LeaderboardQuery adalah parameter query leaderboard.
type LeaderboardQuery struct {
	Metric model.LeaderboardMetric
	Period model.LeaderboardPeriod
	Page   int
	Limit  int
	// UserID (opsional) untuk menghitung rank user pemanggil.
	UserID uuid.UUID
}

// UserRank adalah posisi seorang user pada (metric, period).
type UserRank struct {
	Rank  int   `json:"rank"`
	Score int64 `json:"score"`
}

type LeaderboardResponse struct {
	Metric      model.LeaderboardMetric    `json:"metric"`
	Period      model.LeaderboardPeriod    `json:"period"`
	Rankings    []model.LeaderboardRanking `json:"rankings"`
	UserRank    *UserRank                  `json:"userRank"`
	Page        int                        `json:"page"`
	Limit       int                        `json:"limit"`
	Total       int                        `json:"total"`
	LastUpdated time.Time                  `json:"lastUpdated"`
}

type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, q LeaderboardQuery) (*LeaderboardResponse, error)

	// UserRank menghitung rank user langsung dari data (count user dengan skor lebih besar + 1).
	UserRank(ctx context.Context, metric model.LeaderboardMetric, period model.LeaderboardPeriod, userID uuid.UUID) (*UserRank, error)
}

type leaderboardService struct {
	repo  repository.LeaderboardRepository
	cache *utils.StaleCache[model.LeaderboardKey, []model.LeaderboardRanking]
	topN  int
	now   func() time.Time
	log   *utils.Logger
}

func NewLeaderboardService(repo repository.LeaderboardRepository, store repository.SnapshotStore, cfg config.LeaderboardConfig, now func() time.Time, log *utils.Logger) LeaderboardService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	topN := cfg.TopN
	if topN <= 0 {
		topN = 100
	}
	return &leaderboardService{
		repo:  repo,
		cache: utils.NewStaleCache(store, cfg.StaleAfter, now),
		topN:  topN,
		now:   now,
		log:   log.With("component", "leaderboard"),
	}
}

// windowStart: weekly = 7 hari terakhir, monthly = 30 hari terakhir, alltime = nil.
// Metric streak tidak punya window; since dipakai sebagai batas "streak masih hidup" (mulai kemarin).
func windowStart(metric model.LeaderboardMetric, period model.LeaderboardPeriod, now time.Time) *time.Time {
	now = now.UTC()
	if metric == model.MetricStreak {
		y, m, d := now.Date()
		alive := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		return &alive
	}
	var since time.Time
	switch period {
	case model.PeriodWeekly:
		since = now.AddDate(0, 0, -7)
	case model.PeriodMonthly:
		since = now.AddDate(0, 0, -30)
	default:
		return nil
	}
	return &since
}

func validateLeaderboard(metric model.LeaderboardMetric, period model.LeaderboardPeriod) error {
	if !metric.Valid() {
		return utils.NewError(utils.KindInvalidInput, "metric leaderboard tidak valid", nil)
	}
	if !period.Valid() {
		return utils.NewError(utils.KindInvalidInput, "period leaderboard tidak valid", nil)
	}
	return nil
}

// rankRows memberi rank = posisi + 1 dan rankChange = rank lama - rank baru (0 untuk user baru).
func rankRows(rows []repository.MetricScore, previous []model.LeaderboardRanking) []model.LeaderboardRanking {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].UserID.String() < rows[j].UserID.String()
	})

	prevRank := make(map[string]int, len(previous))
	for _, r := range previous {
		prevRank[r.UserID] = r.Rank
	}

	out := make([]model.LeaderboardRanking, 0, len(rows))
	for i, row := range rows {
		id := row.UserID.String()
		rank := i + 1
		change := 0
		if old, ok := prevRank[id]; ok {
			change = old - rank
		}
		out = append(out, model.LeaderboardRanking{
			UserID:     id,
			Username:   row.Username,
			Score:      row.Score,
			Rank:       rank,
			RankChange: change,
		})
	}
	return out
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, q LeaderboardQuery) (*LeaderboardResponse, error) {
	ctx, span := otel.Tracer("leaderboard").Start(ctx, "leaderboard.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("leaderboard.metric", string(q.Metric)),
		attribute.String("leaderboard.period", string(q.Period)),
	)

	if err := validateLeaderboard(q.Metric, q.Period); err != nil {
		return nil, err
	}

	key := model.LeaderboardKey{Metric: q.Metric, Period: q.Period}
	entry, err := s.cache.Get(ctx, key, func(ctx context.Context, previous *utils.CacheEntry[[]model.LeaderboardRanking]) ([]model.LeaderboardRanking, error) {
		rows, err := s.repo.TopUsers(ctx, q.Metric, windowStart(q.Metric, q.Period, s.now()), s.topN)
		if err != nil {
			return nil, err
		}
		var prev []model.LeaderboardRanking
		if previous != nil {
			prev = previous.Value
		}
		s.log.Debug("leaderboard recomputed", "key", key.String(), "rows", len(rows))
		return rankRows(rows, prev), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// pagination di dalam snapshot
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	all := entry.Value
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	rankings := make([]model.LeaderboardRanking, end-start)
	copy(rankings, all[start:end])

	resp := &LeaderboardResponse{
		Metric:      q.Metric,
		Period:      q.Period,
		Rankings:    rankings,
		Page:        page,
		Limit:       limit,
		Total:       len(all),
		LastUpdated: entry.UpdatedAt,
	}

	if q.UserID != uuid.Nil {
		// user ada di snapshot => pakai rank snapshot, selain itu hitung on-demand
		id := q.UserID.String()
		for _, r := range all {
			if r.UserID == id {
				resp.UserRank = &UserRank{Rank: r.Rank, Score: r.Score}
				break
			}
		}
		if resp.UserRank == nil {
			rank, err := s.UserRank(ctx, q.Metric, q.Period, q.UserID)
			if err != nil {
				return nil, err
			}
			resp.UserRank = rank
		}
	}
	return resp, nil
}

func (s *leaderboardService) UserRank(ctx context.Context, metric model.LeaderboardMetric, period model.LeaderboardPeriod, userID uuid.UUID) (*UserRank, error) {
	if err := validateLeaderboard(metric, period); err != nil {
		return nil, err
	}
	since := windowStart(metric, period, s.now())
	score, err := s.repo.ScoreOf(ctx, metric, since, userID)
	if err != nil {
		return nil, err
	}
	above, err := s.repo.CountAbove(ctx, metric, since, score)
	if err != nil {
		return nil, err
	}
	return &UserRank{Rank: int(above) + 1, Score: score}, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"credential-engagement-backend/app/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MetricScore adalah nilai metric leaderboard seorang user.
type MetricScore struct {
	UserID   uuid.UUID `gorm:"column:user_id"`
	Username string    `gorm:"column:username"`
	Score    int64     `gorm:"column:score"`
}

// LeaderboardRepository menghitung nilai metric langsung dari tabel user/achievement/sertifikat/skill.
// since=nil berarti all-time. Untuk metric streak, since adalah batas "masih aktif".
type LeaderboardRepository interface {
	// TopUsers mengambil limit user teratas, urut score DESC lalu user id ASC.
	TopUsers(ctx context.Context, metric model.LeaderboardMetric, since *time.Time, limit int) ([]MetricScore, error)

	// CountAbove menghitung user dengan score lebih besar dari score (strictly greater).
	CountAbove(ctx context.Context, metric model.LeaderboardMetric, since *time.Time, score int64) (int64, error)

	// ScoreOf mengambil score satu user (0 jika tidak punya data).
	ScoreOf(ctx context.Context, metric model.LeaderboardMetric, since *time.Time, userID uuid.UUID) (int64, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

// metricQuery membentuk query (user_id, username, score) per metric.
func (r *leaderboardRepository) metricQuery(ctx context.Context, metric model.LeaderboardMetric, since *time.Time) (*gorm.DB, error) {
	q := r.db.WithContext(ctx).Table("users AS u").Where("u.is_active = ?", true)

	switch metric {
	case model.MetricPoints:
		if since == nil {
			return q.Select("u.id AS user_id, u.username AS username, u.points AS score"), nil
		}
		return q.Select("u.id AS user_id, u.username AS username, SUM(a.points) AS score").
			Joins("JOIN achievements a ON a.user_id = u.id").
			Where("a.created_at >= ?", *since).
			Group("u.id, u.username"), nil

	case model.MetricCertificates:
		q = q.Select("u.id AS user_id, u.username AS username, COUNT(c.id) AS score").
			Joins("JOIN certificates c ON c.user_id = u.id")
		if since != nil {
			q = q.Where("c.created_at >= ?", *since)
		}
		return q.Group("u.id, u.username"), nil

	case model.MetricSkills:
		q = q.Select("u.id AS user_id, u.username AS username, COUNT(s.id) AS score").
			Joins("JOIN user_skills s ON s.user_id = u.id")
		if since != nil {
			q = q.Where("s.created_at >= ?", *since)
		}
		return q.Group("u.id, u.username"), nil

	case model.MetricStreak:
		q = q.Select("u.id AS user_id, u.username AS username, u.streak_current AS score").
			Where("u.streak_current > 0")
		if since != nil {
			q = q.Where("u.streak_last_active >= ?", *since)
		}
		return q, nil
	}
	return nil, fmt.Errorf("unknown metric %q", metric)
}

func (r *leaderboardRepository) TopUsers(ctx context.Context, metric model.LeaderboardMetric, since *time.Time, limit int) ([]MetricScore, error) {
	q, err := r.metricQuery(ctx, metric, since)
	if err != nil {
		return nil, err
	}
	var rows []MetricScore
	err = r.db.WithContext(ctx).
		Table("(?) AS t", q).
		Select("t.user_id, t.username, t.score").
		Order("t.score DESC").
		Order("t.user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *leaderboardRepository) CountAbove(ctx context.Context, metric model.LeaderboardMetric, since *time.Time, score int64) (int64, error) {
	q, err := r.metricQuery(ctx, metric, since)
	if err != nil {
		return 0, err
	}
	var count int64
	err = r.db.WithContext(ctx).
		Table("(?) AS t", q).
		Where("t.score > ?", score).
		Count(&count).Error
	return count, err
}

func (r *leaderboardRepository) ScoreOf(ctx context.Context, metric model.LeaderboardMetric, since *time.Time, userID uuid.UUID) (int64, error) {
	q, err := r.metricQuery(ctx, metric, since)
	if err != nil {
		return 0, err
	}
	var rows []MetricScore
	if err := q.Where("u.id = ?", userID).Scan(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Score, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EngagementChange adalah hasil read-modify-write engagement seorang user.
// Commit hanya berhasil jika versi user di database masih ExpectedVersion.
type EngagementChange struct {
	UserID          uuid.UUID
	ExpectedVersion int
	Points          int
	Level           int
	Streak          model.LearningStreak
	Achievements    []model.Achievement
	Badges          []model.UserBadge
}

// UserRepository mendefinisikan kontrak operasi database untuk user + field engagement.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error

	// FindByID mengambil user beserta badge-nya.
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// HasAchievement mengecek apakah aksi untuk referensi tertentu sudah pernah dicatat.
	HasAchievement(ctx context.Context, userID uuid.UUID, action model.AwardAction, referenceID string) (bool, error)

	// CommitEngagement menyimpan points/level/streak + menambah achievement & badge
	// dalam 1 transaksi. Mengembalikan utils.ErrConcurrencyConflict bila versi berubah
	// atau badge yang sama disisipkan proses lain.
	CommitEngagement(ctx context.Context, change EngagementChange) error

	// ListAchievements mengambil log achievement terbaru milik user.
	ListAchievements(ctx context.Context, userID uuid.UUID, limit int) ([]model.Achievement, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository membuat instance baru userRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if user.Level == 0 {
		user.Level = 1
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Badges").
		Where("id = ?", id).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.KindNotFound, "user tidak ditemukan", err)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) HasAchievement(ctx context.Context, userID uuid.UUID, action model.AwardAction, referenceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Achievement{}).
		Where("user_id = ? AND action = ? AND reference_id = ?", userID, action, referenceID).
		Count(&count).Error
	return count > 0, err
}

func (r *userRepository) CommitEngagement(ctx context.Context, change EngagementChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Step 1: update bersyarat versi (optimistic concurrency)
		res := tx.Model(&model.User{}).
			Where("id = ? AND version = ?", change.UserID, change.ExpectedVersion).
			Updates(map[string]interface{}{
				"points":             change.Points,
				"level":              change.Level,
				"streak_current":     change.Streak.Current,
				"streak_longest":     change.Streak.Longest,
				"streak_last_active": change.Streak.LastActive,
				"version":            gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("update engagement: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.ErrConcurrencyConflict
		}

		// Step 2: badge (unique per nama): duplikat berarti ada award paralel
		if len(change.Badges) > 0 {
			if err := tx.Create(&change.Badges).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return utils.ErrConcurrencyConflict
				}
				return fmt.Errorf("insert badges: %w", err)
			}
		}

		// Step 3: log achievement (append-only)
		if len(change.Achievements) > 0 {
			if err := tx.Create(&change.Achievements).Error; err != nil {
				return fmt.Errorf("insert achievements: %w", err)
			}
		}
		return nil
	})
}

func (r *userRepository) ListAchievements(ctx context.Context, userID uuid.UUID, limit int) ([]model.Achievement, error) {
	var out []model.Achievement
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

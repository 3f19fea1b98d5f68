package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/app/repository"
	"credential-engagement-backend/config"
	"credential-engagement-backend/utils"

	"github.com/google/uuid"
)

// maxCommitAttempts adalah batas retry optimistic concurrency per operasi engagement.
const maxCommitAttempts = 5

// LevelFor menghitung level dari total poin: floor(points/100) + 1.
func LevelFor(points int) int {
	if points < 0 {
		points = 0
	}
	return points/100 + 1
}

// AwardRequest adalah permintaan pemberian poin untuk sebuah aksi.
type AwardRequest struct {
	UserID      uuid.UUID
	Action      model.AwardAction
	Amount      int    // 0 => pakai tabel award
	ReferenceID string // id sertifikat / skill
	Title       string
	// Once: tolak bila achievement dengan (Action, ReferenceID) sudah ada.
	Once bool
}

// AwardResult adalah ringkasan perubahan engagement setelah commit.
type AwardResult struct {
	PointsAwarded int      `json:"pointsAwarded"`
	NewTotal      int      `json:"newTotal"`
	NewLevel      int      `json:"newLevel"`
	NewBadges     []string `json:"newBadges"`
	// Skipped: tidak ada perubahan (sudah pernah diberikan).
	Skipped bool `json:"skipped,omitempty"`
}

// LedgerTx adalah draft perubahan engagement untuk satu user dalam satu percobaan commit.
type LedgerTx struct {
	user         model.User
	now          time.Time
	points       int
	streak       model.LearningStreak
	streakDirty  bool
	awarded      int
	achievements []model.Achievement
	badges       []model.UserBadge
	newBadges    []string
}

// User mengembalikan salinan state user yang dibaca di awal percobaan.
func (tx *LedgerTx) User() model.User { return tx.user }

func (tx *LedgerTx) Now() time.Time { return tx.now }

func (tx *LedgerTx) Points() int { return tx.points }

func (tx *LedgerTx) Streak() model.LearningStreak { return tx.streak }

func (tx *LedgerTx) SetStreak(s model.LearningStreak) {
	tx.streak = s
	tx.streakDirty = true
}

// AddPoints mencatat achievement + menambah poin. Amount negatif diabaikan
// (poin hanya turun lewat AdjustPoints).
func (tx *LedgerTx) AddPoints(action model.AwardAction, amount int, title, referenceID string) {
	if amount < 0 {
		return
	}
	tx.points += amount
	tx.awarded += amount
	tx.appendAchievement(action, amount, title, referenceID)
}

func (tx *LedgerTx) appendAchievement(action model.AwardAction, amount int, title, referenceID string) {
	tx.achievements = append(tx.achievements, model.Achievement{
		UserID:      tx.user.ID,
		Action:      action,
		Title:       title,
		Points:      amount,
		ReferenceID: referenceID,
		// urutan append dijaga lewat offset mikrodetik
		CreatedAt: tx.now.Add(time.Duration(len(tx.achievements)) * time.Microsecond),
	})
}

// GrantBadge memberi badge jika belum dimiliki. false => sudah ada (no-op).
func (tx *LedgerTx) GrantBadge(name string) bool {
	if tx.HasBadge(name) {
		return false
	}
	tx.badges = append(tx.badges, model.UserBadge{UserID: tx.user.ID, Name: name, AwardedAt: tx.now})
	tx.newBadges = append(tx.newBadges, name)
	return true
}

func (tx *LedgerTx) HasBadge(name string) bool {
	if tx.user.HasBadge(name) {
		return true
	}
	for _, b := range tx.badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

func (tx *LedgerTx) dirty() bool {
	return tx.streakDirty || len(tx.achievements) > 0 || len(tx.badges) > 0 || tx.points != tx.user.Points
}

// LedgerFunc mengisi draft perubahan. Dipanggil ulang pada setiap retry.
type LedgerFunc func(ctx context.Context, tx *LedgerTx) error

// GamificationService adalah satu-satunya jalur perubahan points/level/badge/streak user.
type GamificationService interface {
	// Award memberi poin untuk aksi (jumlah dari tabel award bila Amount=0).
	Award(ctx context.Context, req AwardRequest) (*AwardResult, error)

	// GrantBadge memberi badge + achievement + poin sekali per user (idempotent).
	GrantBadge(ctx context.Context, userID uuid.UUID, badge string, action model.AwardAction, amount int) (*AwardResult, error)

	// AdjustPoints: koreksi admin, satu-satunya jalur yang boleh mengurangi poin.
	AdjustPoints(ctx context.Context, userID uuid.UUID, delta int, reason string, adminID uuid.UUID) (*AwardResult, error)

	// Apply menjalankan read-modify-write dengan retry optimistic concurrency.
	Apply(ctx context.Context, userID uuid.UUID, fn LedgerFunc) (*AwardResult, error)

	// AmountFor mengembalikan jumlah poin default untuk aksi.
	AmountFor(action model.AwardAction) int
}

type gamificationService struct {
	userRepo repository.UserRepository
	awards   config.AwardConfig
	now      func() time.Time
	log      *utils.Logger
}

func NewGamificationService(userRepo repository.UserRepository, awards config.AwardConfig, now func() time.Time, log *utils.Logger) GamificationService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &gamificationService{
		userRepo: userRepo,
		awards:   awards,
		now:      now,
		log:      log.With("component", "ledger"),
	}
}

func (s *gamificationService) AmountFor(action model.AwardAction) int {
	switch action {
	case model.ActionCertificateCreated:
		return s.awards.CertificateCreated
	case model.ActionCertificateVerified:
		return s.awards.CertificateVerified
	case model.ActionSkillAdded:
		return s.awards.SkillAdded
	case model.ActionDailyLogin:
		return s.awards.DailyLogin
	}
	return 0
}

func defaultTitle(action model.AwardAction) string {
	switch action {
	case model.ActionCertificateCreated:
		return "Sertifikat ditambahkan"
	case model.ActionCertificateVerified:
		return "Sertifikat terverifikasi"
	case model.ActionSkillAdded:
		return "Skill baru"
	case model.ActionDailyLogin:
		return "Login harian"
	}
	return string(action)
}

func (s *gamificationService) Apply(ctx context.Context, userID uuid.UUID, fn LedgerFunc) (*AwardResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		// Step 1: baca state terbaru
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		tx := &LedgerTx{
			user:   *user,
			now:    s.now().UTC(),
			points: user.Points,
			streak: user.LearningStreak,
		}

		// Step 2: isi draft
		if err := fn(ctx, tx); err != nil {
			return nil, err
		}
		if !tx.dirty() {
			return &AwardResult{NewTotal: user.Points, NewLevel: LevelFor(user.Points), NewBadges: []string{}, Skipped: true}, nil
		}

		// Step 3: level + level-up achievement
		oldLevel := LevelFor(user.Points)
		newLevel := LevelFor(tx.points)
		if newLevel > oldLevel {
			tx.appendAchievement(model.ActionLevelUp, 0,
				fmt.Sprintf("Naik ke level %d", newLevel),
				fmt.Sprintf("level:%d", newLevel))
		}

		// Step 4: commit bersyarat versi
		err = s.userRepo.CommitEngagement(ctx, repository.EngagementChange{
			UserID:          userID,
			ExpectedVersion: user.Version,
			Points:          tx.points,
			Level:           newLevel,
			Streak:          tx.streak,
			Achievements:    tx.achievements,
			Badges:          tx.badges,
		})
		if err == nil {
			badges := tx.newBadges
			if badges == nil {
				badges = []string{}
			}
			return &AwardResult{
				PointsAwarded: tx.awarded,
				NewTotal:      tx.points,
				NewLevel:      newLevel,
				NewBadges:     badges,
			}, nil
		}
		if !errors.Is(err, utils.ErrConcurrencyConflict) {
			return nil, err
		}
		lastErr = err
		s.log.Debug("engagement commit conflict, retrying", "userId", userID, "attempt", attempt)
	}
	return nil, fmt.Errorf("commit engagement setelah %d percobaan: %w", maxCommitAttempts, lastErr)
}

func (s *gamificationService) Award(ctx context.Context, req AwardRequest) (*AwardResult, error) {
	amount := req.Amount
	if amount == 0 {
		amount = s.AmountFor(req.Action)
	}
	if amount < 0 {
		return nil, utils.NewError(utils.KindInvalidInput, "jumlah poin tidak boleh negatif", nil)
	}
	title := req.Title
	if title == "" {
		title = defaultTitle(req.Action)
	}

	return s.Apply(ctx, req.UserID, func(ctx context.Context, tx *LedgerTx) error {
		if req.Once && req.ReferenceID != "" {
			has, err := s.userRepo.HasAchievement(ctx, req.UserID, req.Action, req.ReferenceID)
			if err != nil {
				return err
			}
			if has {
				return nil
			}
		}
		tx.AddPoints(req.Action, amount, title, req.ReferenceID)
		return nil
	})
}

func (s *gamificationService) GrantBadge(ctx context.Context, userID uuid.UUID, badge string, action model.AwardAction, amount int) (*AwardResult, error) {
	return s.Apply(ctx, userID, func(_ context.Context, tx *LedgerTx) error {
		if tx.GrantBadge(badge) {
			tx.AddPoints(action, amount, badge, "badge:"+badge)
		}
		return nil
	})
}

func (s *gamificationService) AdjustPoints(ctx context.Context, userID uuid.UUID, delta int, reason string, adminID uuid.UUID) (*AwardResult, error) {
	if delta == 0 {
		return nil, utils.NewError(utils.KindInvalidInput, "delta poin tidak boleh 0", nil)
	}
	if reason == "" {
		reason = "Penyesuaian admin"
	}

	res, err := s.Apply(ctx, userID, func(_ context.Context, tx *LedgerTx) error {
		applied := delta
		if tx.points+applied < 0 {
			applied = -tx.points
		}
		tx.points += applied
		tx.awarded += applied
		tx.appendAchievement(model.ActionAdminAdjustment, applied, reason, "admin:"+adminID.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("points adjusted by admin", "userId", userID, "adminId", adminID, "delta", delta, "newTotal", res.NewTotal)
	return res, nil
}

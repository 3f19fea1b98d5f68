package service

import (
	"context"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/app/repository"

	"github.com/google/uuid"
)

const recentAchievementLimit = 20

// EngagementProfile adalah ringkasan engagement seorang user.
type EngagementProfile struct {
	User               *model.User         `json:"user"`
	Skills             []model.UserSkill   `json:"skills"`
	RecentAchievements []model.Achievement `json:"recentAchievements"`
	NextLevelAt        int                 `json:"nextLevelAt"`
}

// ProfileService adalah jalur baca (read-only) untuk data engagement dan katalog skill.
type ProfileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*EngagementProfile, error)
	ListSkills(ctx context.Context) ([]model.Skill, error)
}

type profileService struct {
	userRepo  repository.UserRepository
	skillRepo repository.SkillRepository
}

func NewProfileService(userRepo repository.UserRepository, skillRepo repository.SkillRepository) ProfileService {
	return &profileService{userRepo: userRepo, skillRepo: skillRepo}
}

func (s *profileService) GetProfile(ctx context.Context, userID uuid.UUID) (*EngagementProfile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	skills, err := s.skillRepo.FindUserSkills(ctx, userID)
	if err != nil {
		return nil, err
	}
	achievements, err := s.userRepo.ListAchievements(ctx, userID, recentAchievementLimit)
	if err != nil {
		return nil, err
	}
	return &EngagementProfile{
		User:               user,
		Skills:             skills,
		RecentAchievements: achievements,
		NextLevelAt:        LevelFor(user.Points) * 100,
	}, nil
}

func (s *profileService) ListSkills(ctx context.Context) ([]model.Skill, error) {
	return s.skillRepo.FindAll(ctx)
}

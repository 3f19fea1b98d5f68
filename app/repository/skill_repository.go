package repository

import (
	"context"
	"errors"
	"fmt"

	"credential-engagement-backend/app/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SkillRepository menangani katalog skill dan tally skill per user.
type SkillRepository interface {
	FindAll(ctx context.Context) ([]model.Skill, error)

	// CountExisting menghitung berapa dari ids yang ada di katalog.
	CountExisting(ctx context.Context, ids []uuid.UUID) (int64, error)

	// FindUserSkills mengambil skill milik user beserta referensi sertifikatnya.
	FindUserSkills(ctx context.Context, userID uuid.UUID) ([]model.UserSkill, error)

	// AttachCertificate menambah referensi sertifikat ke UserSkill (dibuat bila belum ada)
	// dan menaikkan poinnya sebesar delta (clamp 100). created=true jika UserSkill baru.
	// Referensi yang sudah ada tidak mengubah apa pun.
	AttachCertificate(ctx context.Context, userID, skillID, certID uuid.UUID, delta int) (created bool, err error)

	// DetachCertificate menghapus referensi, menurunkan poin sebesar delta (clamp 0),
	// dan menghapus UserSkill ketika referensinya habis.
	DetachCertificate(ctx context.Context, userID, skillID, certID uuid.UUID, delta int) (removed bool, err error)
}

type skillRepository struct {
	db *gorm.DB
}

func NewSkillRepository(db *gorm.DB) SkillRepository {
	return &skillRepository{db: db}
}

func (r *skillRepository) FindAll(ctx context.Context) ([]model.Skill, error) {
	var skills []model.Skill
	err := r.db.WithContext(ctx).Order("category ASC, name ASC").Find(&skills).Error
	return skills, err
}

func (r *skillRepository) CountExisting(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Skill{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

func (r *skillRepository) FindUserSkills(ctx context.Context, userID uuid.UUID) ([]model.UserSkill, error) {
	var out []model.UserSkill
	err := r.db.WithContext(ctx).
		Preload("Skill").
		Preload("Certificates").
		Where("user_id = ?", userID).
		Order("points DESC").
		Find(&out).Error
	return out, err
}

func clampSkillPoints(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (r *skillRepository) AttachCertificate(ctx context.Context, userID, skillID, certID uuid.UUID, delta int) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var us model.UserSkill
		err := tx.Where("user_id = ? AND skill_id = ?", userID, skillID).First(&us).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			us = model.UserSkill{UserID: userID, SkillID: skillID, Points: clampSkillPoints(delta)}
			if err := tx.Create(&us).Error; err != nil {
				return fmt.Errorf("create user skill: %w", err)
			}
			created = true
		case err != nil:
			return err
		default:
			// referensi sudah ada => idempotent
			var refs int64
			if err := tx.Model(&model.UserSkillCertificate{}).
				Where("user_skill_id = ? AND certificate_id = ?", us.ID, certID).
				Count(&refs).Error; err != nil {
				return err
			}
			if refs > 0 {
				return nil
			}
			if err := tx.Model(&model.UserSkill{}).
				Where("id = ?", us.ID).
				Update("points", gorm.Expr("CASE WHEN points + ? > 100 THEN 100 ELSE points + ? END", delta, delta)).Error; err != nil {
				return fmt.Errorf("update user skill: %w", err)
			}
		}

		ref := model.UserSkillCertificate{UserSkillID: us.ID, CertificateID: certID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ref).Error
	})
	return created, err
}

func (r *skillRepository) DetachCertificate(ctx context.Context, userID, skillID, certID uuid.UUID, delta int) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var us model.UserSkill
		err := tx.Where("user_id = ? AND skill_id = ?", userID, skillID).First(&us).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Where("user_skill_id = ? AND certificate_id = ?", us.ID, certID).Delete(&model.UserSkillCertificate{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var remaining int64
		if err := tx.Model(&model.UserSkillCertificate{}).Where("user_skill_id = ?", us.ID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			removed = true
			return tx.Where("id = ?", us.ID).Delete(&model.UserSkill{}).Error
		}

		return tx.Model(&model.UserSkill{}).
			Where("id = ?", us.ID).
			Update("points", gorm.Expr("CASE WHEN points - ? < 0 THEN 0 ELSE points - ? END", delta, delta)).Error
	})
	return removed, err
}

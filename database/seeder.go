package database

import (
	"context"
	"errors"
	"fmt"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/app/repository"
	"credential-engagement-backend/utils"

	"gorm.io/gorm"
)

// RunSeeders menjalankan seluruh seeder yang dibutuhkan.
// Panggil ini sekali di main.go setelah InitDB berhasil. Aman dijalankan berulang.
func RunSeeders(ctx context.Context, db *gorm.DB, issuers repository.IssuerRepository, log *utils.Logger) (*model.User, error) {
	if err := SeedSkills(ctx, db, log); err != nil {
		return nil, err
	}
	if err := SeedTrustedIssuers(ctx, issuers, log); err != nil {
		return nil, err
	}
	return SeedAdmin(ctx, db, log)
}

// ===============================
//  SEED SKILLS
// ===============================

var defaultSkills = []model.Skill{
	{Name: "Go", Category: "programming"},
	{Name: "Python", Category: "programming"},
	{Name: "JavaScript", Category: "programming"},
	{Name: "SQL", Category: "data"},
	{Name: "Machine Learning", Category: "data"},
	{Name: "Cloud Computing", Category: "infrastructure"},
	{Name: "Kubernetes", Category: "infrastructure"},
	{Name: "Cyber Security", Category: "security"},
	{Name: "UI/UX Design", Category: "design"},
	{Name: "Project Management", Category: "soft-skill"},
}

// SeedSkills mengisi katalog skill jika masih kosong.
func SeedSkills(ctx context.Context, db *gorm.DB, log *utils.Logger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&model.Skill{}).Count(&count).Error; err != nil {
		return fmt.Errorf("[SEEDER] hitung skill: %w", err)
	}
	if count > 0 {
		log.Info("[SEEDER] skills already seeded, skipping", "count", count)
		return nil
	}

	skills := make([]model.Skill, len(defaultSkills))
	copy(skills, defaultSkills)
	if err := db.WithContext(ctx).Create(&skills).Error; err != nil {
		return fmt.Errorf("[SEEDER] gagal seed skills: %w", err)
	}
	log.Info("[SEEDER] skills seeded", "count", len(skills))
	return nil
}

// ===============================
//  SEED TRUSTED ISSUERS
// ===============================

var defaultIssuers = []model.TrustedIssuer{
	{Name: "Coursera", Domain: "coursera.org", CredentialIDPattern: `^[A-Z0-9]{8,16}$`},
	{Name: "Dicoding", Domain: "dicoding.com", CredentialIDPattern: `^[A-Z0-9]{10,14}$`},
	{Name: "Google Cloud", Domain: "credential.net"},
	{Name: "AWS", Domain: "credly.com"},
	{Name: "Linux Foundation", Domain: "credly.com", CredentialIDPattern: `^LF-[a-z0-9]{10}$`},
	{Name: "Microsoft", Domain: "learn.microsoft.com"},
}

// SeedTrustedIssuers melakukan upsert by name (domain/pola lama ikut diperbarui).
func SeedTrustedIssuers(ctx context.Context, issuers repository.IssuerRepository, log *utils.Logger) error {
	for _, seed := range defaultIssuers {
		issuer := seed
		if err := issuers.Upsert(ctx, &issuer); err != nil {
			return fmt.Errorf("[SEEDER] gagal seed issuer %s: %w", issuer.Name, err)
		}
	}
	log.Info("[SEEDER] trusted issuers seeded", "count", len(defaultIssuers))
	return nil
}

// ===============================
//  SEED ADMIN
// ===============================

// SeedAdmin memastikan ada 1 akun admin awal (username "admin").
func SeedAdmin(ctx context.Context, db *gorm.DB, log *utils.Logger) (*model.User, error) {
	var admin model.User
	err := db.WithContext(ctx).Where("username = ?", "admin").First(&admin).Error
	if err == nil {
		return &admin, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("[SEEDER] cari admin: %w", err)
	}

	admin = model.User{
		Username: "admin",
		FullName: "Administrator",
		Role:     utils.RoleAdmin,
		IsActive: true,
		Level:    1,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return nil, fmt.Errorf("[SEEDER] gagal seed admin: %w", err)
	}
	log.Info("[SEEDER] admin user created", "userId", admin.ID)
	return &admin, nil
}

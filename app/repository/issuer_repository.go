package repository

import (
	"context"
	"errors"
	"strings"

	"credential-engagement-backend/app/model"

	"gorm.io/gorm"
)

// IssuerRepository menyediakan akses ke daftar penerbit terpercaya.
type IssuerRepository interface {
	// FindByName mencari penerbit (case-insensitive). (nil, nil) jika tidak terdaftar.
	FindByName(ctx context.Context, name string) (*model.TrustedIssuer, error)
	FindAll(ctx context.Context) ([]model.TrustedIssuer, error)
	Upsert(ctx context.Context, issuer *model.TrustedIssuer) error
}

type issuerRepository struct {
	db *gorm.DB
}

func NewIssuerRepository(db *gorm.DB) IssuerRepository {
	return &issuerRepository{db: db}
}

func (r *issuerRepository) FindByName(ctx context.Context, name string) (*model.TrustedIssuer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var issuer model.TrustedIssuer
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&issuer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &issuer, nil
}

func (r *issuerRepository) FindAll(ctx context.Context) ([]model.TrustedIssuer, error) {
	var out []model.TrustedIssuer
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// Upsert membuat penerbit baru atau memperbarui domain/pola berdasarkan nama.
func (r *issuerRepository) Upsert(ctx context.Context, issuer *model.TrustedIssuer) error {
	existing, err := r.FindByName(ctx, issuer.Name)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.WithContext(ctx).Create(issuer).Error
	}
	issuer.ID = existing.ID
	return r.db.WithContext(ctx).
		Model(&model.TrustedIssuer{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"domain":                issuer.Domain,
			"credential_id_pattern": issuer.CredentialIDPattern,
		}).Error
}

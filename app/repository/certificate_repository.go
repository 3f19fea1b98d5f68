package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VerificationUpdate adalah hasil keputusan verifikasi yang akan ditulis ke sertifikat.
type VerificationUpdate struct {
	Status         model.VerificationStatus
	Score          int
	Confidence     int
	IssuerVerified bool
	EditsDetected  bool
	Issues         []string
	CheckedAt      time.Time
}

// EvidenceReplacement berisi bukti baru untuk sebuah sertifikat.
type EvidenceReplacement struct {
	EvidenceURL      string
	EvidenceFileType model.EvidenceType
	CredentialURL    *string
}

// CertificateRepository mendefinisikan operasi database untuk sertifikat.
type CertificateRepository interface {
	Create(ctx context.Context, cert *model.Certificate) error

	// FindByID mengambil sertifikat beserta SkillIDs-nya.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Certificate, error)

	// FindByUserID mengambil semua sertifikat milik user (terbaru dulu).
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Certificate, error)

	// UpdateVerification menulis hasil verifikasi hanya jika status & versi bukti
	// masih sama dengan yang dibaca pemanggil. Selain itu utils.ErrConcurrencyConflict.
	UpdateVerification(ctx context.Context, id uuid.UUID, expectedStatus model.VerificationStatus, expectedEvidenceVersion int, update VerificationUpdate) error

	// ReplaceEvidence mengganti bukti, menaikkan EvidenceVersion dan mereset status ke pending.
	ReplaceEvidence(ctx context.Context, id uuid.UUID, repl EvidenceReplacement) (*model.Certificate, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

type certificateRepository struct {
	db *gorm.DB
}

// NewCertificateRepository membuat instance repository sertifikat.
func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{db: db}
}

func (r *certificateRepository) Create(ctx context.Context, cert *model.Certificate) error {
	if cert == nil || cert.UserID == uuid.Nil {
		return errors.New("UserID harus di-set sebelum Create()")
	}
	if cert.VerificationStatus == "" {
		cert.VerificationStatus = model.StatusPending
	}
	return r.db.WithContext(ctx).Create(cert).Error
}

func (r *certificateRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewError(utils.KindNotFound, "sertifikat tidak ditemukan", err)
	}
	if err != nil {
		return nil, err
	}

	skillIDs, err := r.skillIDsOf(ctx, cert.ID)
	if err != nil {
		return nil, err
	}
	cert.SkillIDs = skillIDs
	return &cert, nil
}

// skillIDsOf mengambil skill yang didukung sertifikat lewat tabel referensi user_skill_certificates.
func (r *certificateRepository) skillIDsOf(ctx context.Context, certID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("user_skill_certificates AS usc").
		Joins("JOIN user_skills us ON us.id = usc.user_skill_id").
		Where("usc.certificate_id = ?", certID).
		Pluck("us.skill_id", &ids).Error
	return ids, err
}

func (r *certificateRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&certs).Error
	if err != nil {
		return nil, err
	}
	for i := range certs {
		ids, err := r.skillIDsOf(ctx, certs[i].ID)
		if err != nil {
			return nil, err
		}
		certs[i].SkillIDs = ids
	}
	return certs, nil
}

func (r *certificateRepository) UpdateVerification(ctx context.Context, id uuid.UUID, expectedStatus model.VerificationStatus, expectedEvidenceVersion int, update VerificationUpdate) error {
	checkedAt := update.CheckedAt
	issues := datatypes.JSONSlice[string](update.Issues)
	if issues == nil {
		issues = datatypes.JSONSlice[string]{}
	}

	res := r.db.WithContext(ctx).
		Model(&model.Certificate{}).
		Where("id = ? AND verification_status = ? AND evidence_version = ?", id, expectedStatus, expectedEvidenceVersion).
		Updates(map[string]interface{}{
			"verification_status":          update.Status,
			"verification_score":           update.Score,
			"verification_confidence":      update.Confidence,
			"verification_issuer_verified": update.IssuerVerified,
			"verification_edits_detected":  update.EditsDetected,
			"verification_issues":          issues,
			"verification_checked_at":      &checkedAt,
			"updated_at":                   time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("update verification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrConcurrencyConflict
	}
	return nil
}

func (r *certificateRepository) ReplaceEvidence(ctx context.Context, id uuid.UUID, repl EvidenceReplacement) (*model.Certificate, error) {
	updates := map[string]interface{}{
		"evidence_url":                 repl.EvidenceURL,
		"evidence_file_type":           repl.EvidenceFileType,
		"evidence_version":             gorm.Expr("evidence_version + 1"),
		"verification_status":          model.StatusPending,
		"verification_score":           0,
		"verification_confidence":      0,
		"verification_issuer_verified": false,
		"verification_edits_detected":  false,
		"verification_issues":          datatypes.JSONSlice[string]{},
		"verification_checked_at":      nil,
		"updated_at":                   time.Now(),
	}
	if repl.CredentialURL != nil {
		updates["credential_url"] = *repl.CredentialURL
	}

	res := r.db.WithContext(ctx).
		Model(&model.Certificate{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("replace evidence: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewError(utils.KindNotFound, "sertifikat tidak ditemukan", nil)
	}
	return r.FindByID(ctx, id)
}

func (r *certificateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Certificate{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewError(utils.KindNotFound, "sertifikat tidak ditemukan", nil)
	}
	return nil
}

package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/app/repository"
	"credential-engagement-backend/utils"

	"github.com/google/uuid"
)

// skillPointsPerCertificate: poin UserSkill per sertifikat pendukung.
const skillPointsPerCertificate = 10

// CertificateInput adalah data klaim sertifikat dari user.
type CertificateInput struct {
	Title            string             `json:"title" binding:"required"`
	Issuer           string             `json:"issuer"`
	IssueDate        *time.Time         `json:"issueDate"`
	ExpiryDate       *time.Time         `json:"expiryDate"`
	CredentialID     string             `json:"credentialId"`
	CredentialURL    string             `json:"credentialUrl"`
	EvidenceURL      string             `json:"evidenceUrl"`
	EvidenceFileType model.EvidenceType `json:"evidenceFileType"`
	SkillIDs         []uuid.UUID        `json:"skillIds"`
}

// EvidenceInput adalah bukti pengganti.
type EvidenceInput struct {
	EvidenceURL      string             `json:"evidenceUrl" binding:"required"`
	EvidenceFileType model.EvidenceType `json:"evidenceFileType" binding:"required"`
	CredentialURL    *string            `json:"credentialUrl"`
}

// CertificateCreated adalah hasil pembuatan sertifikat beserta award-nya.
type CertificateCreated struct {
	Certificate *model.Certificate `json:"certificate"`
	Awards      []*AwardResult     `json:"awards"`
}

type CertificateService interface {
	Create(ctx context.Context, userID uuid.UUID, in CertificateInput) (*CertificateCreated, error)
	Get(ctx context.Context, userID, certificateID uuid.UUID) (*model.Certificate, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.Certificate, error)

	// UpdateSkills mengganti daftar skill pendukung sertifikat.
	UpdateSkills(ctx context.Context, userID, certificateID uuid.UUID, skillIDs []uuid.UUID) (*model.Certificate, error)

	// ReplaceEvidence mengganti bukti; status kembali ke pending.
	ReplaceEvidence(ctx context.Context, userID, certificateID uuid.UUID, in EvidenceInput) (*model.Certificate, error)

	// Delete menghapus sertifikat dan melepas referensinya dari UserSkill.
	Delete(ctx context.Context, userID, certificateID uuid.UUID) error
}

type certificateService struct {
	certRepo  repository.CertificateRepository
	skillRepo repository.SkillRepository
	ledger    GamificationService
	log       *utils.Logger
}

func NewCertificateService(certRepo repository.CertificateRepository, skillRepo repository.SkillRepository, ledger GamificationService, log *utils.Logger) CertificateService {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &certificateService{
		certRepo:  certRepo,
		skillRepo: skillRepo,
		ledger:    ledger,
		log:       log.With("component", "certificate"),
	}
}

func validEvidenceType(t model.EvidenceType) bool {
	switch t {
	case model.EvidenceImage, model.EvidencePDF, model.EvidenceURL:
		return true
	}
	return false
}

func validURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "gs") && u.Host != ""
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// validateSkills memastikan semua skill ada di katalog.
func (s *certificateService) validateSkills(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	count, err := s.skillRepo.CountExisting(ctx, ids)
	if err != nil {
		return err
	}
	if int(count) != len(ids) {
		return utils.NewError(utils.KindInvalidInput, "skill tidak ditemukan di katalog", nil)
	}
	return nil
}

func validateCertificateInput(in *CertificateInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return utils.NewError(utils.KindInvalidInput, "judul sertifikat wajib diisi", nil)
	}
	if in.EvidenceURL == "" && in.CredentialURL == "" {
		return utils.NewError(utils.KindInvalidInput, "bukti sertifikat atau URL kredensial wajib diisi", nil)
	}
	if in.EvidenceURL != "" {
		if !validURL(in.EvidenceURL) {
			return utils.NewError(utils.KindInvalidInput, "URL bukti tidak valid", nil)
		}
		if !validEvidenceType(in.EvidenceFileType) {
			return utils.NewError(utils.KindInvalidInput, "tipe bukti harus image, pdf atau url", nil)
		}
	}
	if in.CredentialURL != "" && !validURL(in.CredentialURL) {
		return utils.NewError(utils.KindInvalidInput, "URL kredensial tidak valid", nil)
	}
	if in.IssueDate != nil && in.ExpiryDate != nil && in.ExpiryDate.Before(*in.IssueDate) {
		return utils.NewError(utils.KindInvalidInput, "tanggal kedaluwarsa sebelum tanggal terbit", nil)
	}
	return nil
}

func (s *certificateService) Create(ctx context.Context, userID uuid.UUID, in CertificateInput) (*CertificateCreated, error) {
	// 1. Validasi input (sebelum memanggil layanan eksternal apa pun)
	if err := validateCertificateInput(&in); err != nil {
		return nil, err
	}
	skillIDs := uniqueIDs(in.SkillIDs)
	if err := s.validateSkills(ctx, skillIDs); err != nil {
		return nil, err
	}

	// 2. Simpan sertifikat (status awal pending)
	cert := &model.Certificate{
		UserID:             userID,
		Title:              in.Title,
		Issuer:             strings.TrimSpace(in.Issuer),
		IssueDate:          in.IssueDate,
		ExpiryDate:         in.ExpiryDate,
		CredentialID:       strings.TrimSpace(in.CredentialID),
		CredentialURL:      strings.TrimSpace(in.CredentialURL),
		EvidenceURL:        strings.TrimSpace(in.EvidenceURL),
		EvidenceFileType:   in.EvidenceFileType,
		VerificationStatus: model.StatusPending,
	}
	if err := s.certRepo.Create(ctx, cert); err != nil {
		return nil, err
	}

	out := &CertificateCreated{Certificate: cert, Awards: []*AwardResult{}}

	// 3. Award certificate_created. Sertifikat sudah tersimpan, jadi kegagalan award
	// hanya dicatat supaya client tidak membuat duplikat saat retry.
	res, err := s.ledger.Award(ctx, AwardRequest{
		UserID:      userID,
		Action:      model.ActionCertificateCreated,
		ReferenceID: cert.ID.String(),
		Title:       "Sertifikat ditambahkan: " + cert.Title,
		Once:        true,
	})
	if err != nil {
		s.log.Error("award certificate_created failed", "certificateId", cert.ID, "userId", userID, "error", err)
	} else {
		out.Awards = append(out.Awards, res)
	}

	// 4. Skill pendukung
	awards, err := s.attachSkills(ctx, userID, cert.ID, skillIDs)
	if err != nil {
		return nil, err
	}
	out.Awards = append(out.Awards, awards...)
	cert.SkillIDs = skillIDs
	return out, nil
}

// attachSkills menambah referensi sertifikat; UserSkill baru memberi award skill_added.
func (s *certificateService) attachSkills(ctx context.Context, userID, certID uuid.UUID, skillIDs []uuid.UUID) ([]*AwardResult, error) {
	var awards []*AwardResult
	for _, skillID := range skillIDs {
		created, err := s.skillRepo.AttachCertificate(ctx, userID, skillID, certID, skillPointsPerCertificate)
		if err != nil {
			return nil, err
		}
		if !created {
			continue
		}
		res, err := s.ledger.Award(ctx, AwardRequest{
			UserID:      userID,
			Action:      model.ActionSkillAdded,
			ReferenceID: skillID.String(),
			Once:        true,
		})
		if err != nil {
			s.log.Error("award skill_added failed", "skillId", skillID, "certificateId", certID, "userId", userID, "error", err)
			continue
		}
		if !res.Skipped {
			awards = append(awards, res)
		}
	}
	return awards, nil
}

func (s *certificateService) Get(ctx context.Context, userID, certificateID uuid.UUID) (*model.Certificate, error) {
	cert, err := s.certRepo.FindByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.UserID != userID {
		return nil, utils.NewError(utils.KindForbidden, "anda tidak berhak mengakses sertifikat ini", nil)
	}
	return cert, nil
}

func (s *certificateService) List(ctx context.Context, userID uuid.UUID) ([]model.Certificate, error) {
	return s.certRepo.FindByUserID(ctx, userID)
}

func (s *certificateService) UpdateSkills(ctx context.Context, userID, certificateID uuid.UUID, skillIDs []uuid.UUID) (*model.Certificate, error) {
	cert, err := s.Get(ctx, userID, certificateID)
	if err != nil {
		return nil, err
	}
	next := uniqueIDs(skillIDs)
	if err := s.validateSkills(ctx, next); err != nil {
		return nil, err
	}

	current := make(map[uuid.UUID]bool, len(cert.SkillIDs))
	for _, id := range cert.SkillIDs {
		current[id] = true
	}
	wanted := make(map[uuid.UUID]bool, len(next))
	var added []uuid.UUID
	for _, id := range next {
		wanted[id] = true
		if !current[id] {
			added = append(added, id)
		}
	}

	// 1. lepas skill yang tidak lagi didukung
	for _, id := range cert.SkillIDs {
		if wanted[id] {
			continue
		}
		if _, err := s.skillRepo.DetachCertificate(ctx, userID, id, cert.ID, skillPointsPerCertificate); err != nil {
			return nil, err
		}
	}

	// 2. tambah skill baru
	if _, err := s.attachSkills(ctx, userID, cert.ID, added); err != nil {
		return nil, err
	}
	return s.certRepo.FindByID(ctx, cert.ID)
}

func (s *certificateService) ReplaceEvidence(ctx context.Context, userID, certificateID uuid.UUID, in EvidenceInput) (*model.Certificate, error) {
	if !validURL(in.EvidenceURL) {
		return nil, utils.NewError(utils.KindInvalidInput, "URL bukti tidak valid", nil)
	}
	if !validEvidenceType(in.EvidenceFileType) {
		return nil, utils.NewError(utils.KindInvalidInput, "tipe bukti harus image, pdf atau url", nil)
	}
	if in.CredentialURL != nil && *in.CredentialURL != "" && !validURL(*in.CredentialURL) {
		return nil, utils.NewError(utils.KindInvalidInput, "URL kredensial tidak valid", nil)
	}
	if _, err := s.Get(ctx, userID, certificateID); err != nil {
		return nil, err
	}

	cert, err := s.certRepo.ReplaceEvidence(ctx, certificateID, repository.EvidenceReplacement{
		EvidenceURL:      strings.TrimSpace(in.EvidenceURL),
		EvidenceFileType: in.EvidenceFileType,
		CredentialURL:    in.CredentialURL,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("evidence replaced, status reset to pending", "certificateId", cert.ID, "evidenceVersion", cert.EvidenceVersion)
	return cert, nil
}

func (s *certificateService) Delete(ctx context.Context, userID, certificateID uuid.UUID) error {
	cert, err := s.Get(ctx, userID, certificateID)
	if err != nil {
		return err
	}
	for _, skillID := range cert.SkillIDs {
		if _, err := s.skillRepo.DetachCertificate(ctx, userID, skillID, cert.ID, skillPointsPerCertificate); err != nil {
			return err
		}
	}
	return s.certRepo.Delete(ctx, cert.ID)
}

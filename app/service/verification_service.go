package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/app/repository"
	"credential-engagement-backend/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// maxVerifyAttempts membatasi pengulangan pipeline ketika sertifikat diubah proses lain.
const maxVerifyAttempts = 3

const (
	SourceAuto   = "auto"
	SourceManual = "manual"
)

// VerificationOutcome adalah respon verifikasi untuk caller.
type VerificationOutcome struct {
	CertificateID  uuid.UUID                `json:"certificateId"`
	Decision       model.VerificationStatus `json:"decision"`
	Score          int                      `json:"score"`
	IssuerVerified bool                     `json:"issuerVerified"`
	EditsDetected  bool                     `json:"editsDetected"`
	Issues         []string                 `json:"issues"`
	Award          *AwardResult             `json:"award,omitempty"`
	// Final: status terminal, hasil tersimpan dikembalikan tanpa verifikasi ulang.
	Final bool `json:"final,omitempty"`
}

// VerificationService menggerakkan sertifikat melalui ekstraksi -> scoring -> keputusan -> persist.
type VerificationService interface {
	// Verify menjalankan verifikasi otomatis untuk sertifikat milik userID.
	Verify(ctx context.Context, userID, certificateID uuid.UUID) (*VerificationOutcome, error)

	// Review adalah keputusan manual admin (verified / rejected).
	Review(ctx context.Context, adminID, certificateID uuid.UUID, decision model.VerificationStatus, note string) (*VerificationOutcome, error)

	// History mengambil riwayat verifikasi sebuah sertifikat.
	History(ctx context.Context, userID, certificateID uuid.UUID, isAdmin bool) ([]model.VerificationResult, error)
}

type verificationService struct {
	certRepo  repository.CertificateRepository
	history   repository.VerificationHistoryRepository
	extractor TextExtractor
	oracle    ScoringOracle
	issuers   IssuerRegistry
	ledger    GamificationService
	now       func() time.Time
	log       *utils.Logger
}

func NewVerificationService(
	certRepo repository.CertificateRepository,
	history repository.VerificationHistoryRepository,
	extractor TextExtractor,
	oracle ScoringOracle,
	issuers IssuerRegistry,
	ledger GamificationService,
	now func() time.Time,
	log *utils.Logger,
) VerificationService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &verificationService{
		certRepo:  certRepo,
		history:   history,
		extractor: extractor,
		oracle:    oracle,
		issuers:   issuers,
		ledger:    ledger,
		now:       now,
		log:       log.With("component", "verification"),
	}
}

func outcomeFromCertificate(c *model.Certificate) *VerificationOutcome {
	issues := []string(c.VerificationDetails.Issues)
	if issues == nil {
		issues = []string{}
	}
	return &VerificationOutcome{
		CertificateID:  c.ID,
		Decision:       c.VerificationStatus,
		Score:          c.VerificationScore,
		IssuerVerified: c.VerificationDetails.IssuerVerified,
		EditsDetected:  c.VerificationDetails.EditsDetected,
		Issues:         issues,
	}
}

func (s *verificationService) loadOwned(ctx context.Context, userID, certificateID uuid.UUID) (*model.Certificate, error) {
	cert, err := s.certRepo.FindByID(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.UserID != userID {
		return nil, utils.NewError(utils.KindForbidden, "anda tidak berhak mengakses sertifikat ini", nil)
	}
	return cert, nil
}

func (s *verificationService) Verify(ctx context.Context, userID, certificateID uuid.UUID) (*VerificationOutcome, error) {
	ctx, span := otel.Tracer("verification").Start(ctx, "verification.verify")
	defer span.End()
	span.SetAttributes(attribute.String("certificate.id", certificateID.String()))

	out, err := s.verify(ctx, userID, certificateID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("verification.decision", string(out.Decision)),
		attribute.Int("verification.score", out.Score),
	)
	return out, nil
}

func (s *verificationService) verify(ctx context.Context, userID, certificateID uuid.UUID) (*VerificationOutcome, error) {
	for attempt := 1; attempt <= maxVerifyAttempts; attempt++ {
		// 1. Ambil sertifikat + cek kepemilikan
		cert, err := s.loadOwned(ctx, userID, certificateID)
		if err != nil {
			return nil, err
		}

		// 2. Precondition: bukti atau URL kredensial wajib ada
		if !cert.HasEvidence() {
			return nil, utils.NewError(utils.KindInvalidInput, "sertifikat belum memiliki bukti atau URL kredensial", nil)
		}

		// 3. Status terminal tidak diverifikasi ulang (kecuali bukti diganti)
		if cert.VerificationStatus.IsTerminal() {
			out := outcomeFromCertificate(cert)
			out.Final = true
			return out, nil
		}

		out, err := s.runPipeline(ctx, cert)
		if errors.Is(err, utils.ErrConcurrencyConflict) {
			s.log.Debug("certificate changed during verification, retrying", "certificateId", cert.ID, "attempt", attempt)
			continue
		}
		return out, err
	}
	return nil, utils.NewError(utils.KindConcurrencyConflict, "sertifikat sedang diubah, coba lagi", utils.ErrConcurrencyConflict)
}

// signals adalah hasil pemanggilan eksternal yang berjalan paralel.
type signals struct {
	assessment   OracleAssessment
	oracleErr    error
	issuer       IssuerCheck
	issuerErr    error
	integrity    *IntegritySignal
	integrityErr error
}

func (s *verificationService) gatherSignals(ctx context.Context, cert *model.Certificate, text string, ref EvidenceRef) signals {
	var sig signals
	claimed := ClaimedFromCertificate(cert)

	// error dicatat per sinyal, bukan membatalkan group
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sig.assessment, sig.oracleErr = s.oracle.Score(gctx, text, claimed)
		return nil
	})
	g.Go(func() error {
		sig.issuer, sig.issuerErr = s.issuers.Lookup(gctx, claimed)
		return nil
	})
	if ref.FileType == model.EvidenceImage {
		g.Go(func() error {
			sig.integrity, sig.integrityErr = s.oracle.CheckIntegrity(gctx, ref.URL)
			return nil
		})
	}
	_ = g.Wait()
	return sig
}

func (s *verificationService) runPipeline(ctx context.Context, cert *model.Certificate) (*VerificationOutcome, error) {
	ref := EvidenceFromCertificate(cert)
	record := &model.VerificationResult{
		CertificateID:   cert.ID.String(),
		UserID:          cert.UserID.String(),
		EvidenceVersion: cert.EvidenceVersion,
		Source:          SourceAuto,
	}
	note := func(msg string) {
		record.Notes = append(record.Notes, model.VerificationNote{At: s.now().UTC(), Message: msg})
	}

	// 4. Ekstraksi teks
	text, err := s.extractor.Extract(ctx, ref)
	if err != nil {
		note("ekstraksi teks gagal: " + err.Error())
		record.Decision = cert.VerificationStatus
		record.Score = cert.VerificationScore
		record.Issues = []string{string(utils.KindEvidenceUnreadable)}
		s.appendHistory(ctx, record)
		if utils.IsKind(err, utils.KindEvidenceUnreadable) {
			return nil, err
		}
		return nil, utils.NewError(utils.KindEvidenceUnreadable, "bukti sertifikat tidak dapat dibaca", err)
	}
	record.OCRText = text
	note(fmt.Sprintf("teks diekstraksi (%d karakter)", len(text)))

	// 5. Oracle + issuer + integritas secara paralel
	sig := s.gatherSignals(ctx, cert, text, ref)

	issuer := sig.issuer
	if sig.issuerErr != nil {
		s.log.Warn("issuer lookup failed", "certificateId", cert.ID, "error", sig.issuerErr)
		note("lookup penerbit gagal: " + sig.issuerErr.Error())
		issuer = IssuerCheck{Issues: []string{IssueIssuerUnverifiable}}
	}

	var result ScoreResult
	if sig.oracleErr != nil {
		// oracle gagal => pending untuk review manual
		s.log.Warn("oracle unavailable, routing to pending", "certificateId", cert.ID, "error", sig.oracleErr)
		note("oracle tidak tersedia: " + sig.oracleErr.Error())
		result = ScoreResult{
			Score:          0,
			Decision:       model.StatusPending,
			IssuerVerified: issuer.Performed && issuer.Verified,
			Issues:         appendUnique(nil, append([]string{IssueOracleUnavailable}, issuer.Issues...)...),
		}
	} else {
		integrity := sig.integrity
		extra := []string{}
		if sig.integrityErr != nil {
			note("cek integritas gagal: " + sig.integrityErr.Error())
			extra = append(extra, IssueIntegrityUnavailable)
		}
		result = ComputeConfidence(ScoreInput{Oracle: sig.assessment, Integrity: integrity, Issuer: issuer})
		result.Issues = appendUnique(result.Issues, extra...)
	}
	note(fmt.Sprintf("keputusan %s dengan skor %d", result.Decision, result.Score))

	// 6. Persist bersyarat (status + versi bukti yang dibaca di awal)
	previous := cert.VerificationStatus
	err = s.certRepo.UpdateVerification(ctx, cert.ID, previous, cert.EvidenceVersion, repository.VerificationUpdate{
		Status:         result.Decision,
		Score:          result.Score,
		Confidence:     sig.assessment.Confidence,
		IssuerVerified: result.IssuerVerified,
		EditsDetected:  result.EditsDetected,
		Issues:         result.Issues,
		CheckedAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	// 7. Riwayat (append-only)
	record.Confidence = sig.assessment.Confidence
	record.Score = result.Score
	record.Decision = result.Decision
	record.IssuerVerified = result.IssuerVerified
	record.EditsDetected = result.EditsDetected
	record.Issues = result.Issues
	s.appendHistory(ctx, record)

	out := &VerificationOutcome{
		CertificateID:  cert.ID,
		Decision:       result.Decision,
		Score:          result.Score,
		IssuerVerified: result.IssuerVerified,
		EditsDetected:  result.EditsDetected,
		Issues:         result.Issues,
	}

	// 8. Award hanya saat transisi ke status verified-class
	out.Award = s.awardIfVerified(ctx, cert, previous, result.Decision)
	return out, nil
}

func (s *verificationService) appendHistory(ctx context.Context, record *model.VerificationResult) {
	if err := s.history.Append(ctx, record); err != nil {
		s.log.Error("append verification history failed", "certificateId", record.CertificateID, "error", err)
	}
}

func (s *verificationService) awardIfVerified(ctx context.Context, cert *model.Certificate, previous, decision model.VerificationStatus) *AwardResult {
	if previous.IsVerifiedClass() || !decision.IsVerifiedClass() {
		return nil
	}
	res, err := s.ledger.Award(ctx, AwardRequest{
		UserID:      cert.UserID,
		Action:      model.ActionCertificateVerified,
		ReferenceID: cert.ID.String(),
		Title:       "Sertifikat terverifikasi: " + cert.Title,
		Once:        true,
	})
	if err != nil {
		s.log.Error("award certificate_verified failed", "certificateId", cert.ID, "userId", cert.UserID, "error", err)
		return nil
	}
	if res.Skipped {
		return nil
	}
	return res
}

func (s *verificationService) Review(ctx context.Context, adminID, certificateID uuid.UUID, decision model.VerificationStatus, note string) (*VerificationOutcome, error) {
	if decision != model.StatusVerified && decision != model.StatusRejected {
		return nil, utils.NewError(utils.KindInvalidInput, "keputusan review harus verified atau rejected", nil)
	}

	for attempt := 1; attempt <= maxVerifyAttempts; attempt++ {
		cert, err := s.certRepo.FindByID(ctx, certificateID)
		if err != nil {
			return nil, err
		}
		if cert.VerificationStatus == decision {
			out := outcomeFromCertificate(cert)
			out.Final = true
			return out, nil
		}
		// verified/rejected hanya dibuka lagi lewat penggantian bukti
		if cert.VerificationStatus.IsTerminal() {
			return nil, utils.NewError(utils.KindInvalidInput,
				fmt.Sprintf("sertifikat sudah %s, ganti bukti untuk review ulang", cert.VerificationStatus), nil)
		}

		issues := []string(cert.VerificationDetails.Issues)
		previous := cert.VerificationStatus
		err = s.certRepo.UpdateVerification(ctx, cert.ID, previous, cert.EvidenceVersion, repository.VerificationUpdate{
			Status:         decision,
			Score:          cert.VerificationScore,
			Confidence:     cert.VerificationDetails.Confidence,
			IssuerVerified: cert.VerificationDetails.IssuerVerified,
			EditsDetected:  cert.VerificationDetails.EditsDetected,
			Issues:         issues,
			CheckedAt:      s.now().UTC(),
		})
		if errors.Is(err, utils.ErrConcurrencyConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		msg := fmt.Sprintf("review manual oleh %s: %s", adminID, decision)
		if note != "" {
			msg += " (" + note + ")"
		}
		s.appendHistory(ctx, &model.VerificationResult{
			CertificateID:   cert.ID.String(),
			UserID:          cert.UserID.String(),
			EvidenceVersion: cert.EvidenceVersion,
			Source:          SourceManual,
			Confidence:      cert.VerificationDetails.Confidence,
			Score:           cert.VerificationScore,
			Decision:        decision,
			IssuerVerified:  cert.VerificationDetails.IssuerVerified,
			EditsDetected:   cert.VerificationDetails.EditsDetected,
			Issues:          issues,
			Notes:           []model.VerificationNote{{At: s.now().UTC(), Message: msg}},
		})
		s.log.Info("certificate reviewed", "certificateId", cert.ID, "adminId", adminID, "from", previous, "to", decision)

		out := outcomeFromCertificate(cert)
		out.Decision = decision
		out.Final = true
		out.Award = s.awardIfVerified(ctx, cert, previous, decision)
		return out, nil
	}
	return nil, utils.NewError(utils.KindConcurrencyConflict, "sertifikat sedang diubah, coba lagi", utils.ErrConcurrencyConflict)
}

func (s *verificationService) History(ctx context.Context, userID, certificateID uuid.UUID, isAdmin bool) ([]model.VerificationResult, error) {
	if !isAdmin {
		if _, err := s.loadOwned(ctx, userID, certificateID); err != nil {
			return nil, err
		}
	}
	return s.history.FindByCertificateID(ctx, certificateID.String())
}

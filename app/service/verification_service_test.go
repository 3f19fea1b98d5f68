package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/utils"

	"github.com/google/uuid"
)

type verificationFixture struct {
	users     *fakeUserRepo
	certs     *fakeCertRepo
	history   *fakeHistoryRepo
	extractor *fakeExtractor
	oracle    *fakeOracle
	issuers   *fakeIssuers
	svc       VerificationService
	user      *model.User
	cert      *model.Certificate
}

func newVerificationFixture(t *testing.T) *verificationFixture {
	t.Helper()
	f := &verificationFixture{
		users:     newFakeUserRepo(),
		certs:     newFakeCertRepo(),
		history:   &fakeHistoryRepo{},
		extractor: &fakeExtractor{text: "Certificate of Completion Go Programming"},
		oracle:    &fakeOracle{assessment: OracleAssessment{Confidence: 92}},
		issuers:   &fakeIssuers{},
	}
	clock := newFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	ledger := NewGamificationService(f.users, testAwards, clock.Now, utils.NewNopLogger())
	f.svc = NewVerificationService(f.certs, f.history, f.extractor, f.oracle, f.issuers, ledger, clock.Now, utils.NewNopLogger())

	f.user = f.users.addUser("ayu")
	f.cert = &model.Certificate{
		UserID:           f.user.ID,
		Title:            "Go Programming",
		Issuer:           "Coursera",
		EvidenceURL:      "https://files.example.com/cert.png",
		EvidenceFileType: model.EvidenceImage,
	}
	if err := f.certs.Create(context.Background(), f.cert); err != nil {
		t.Fatalf("create cert: %v", err)
	}
	return f
}

func (f *verificationFixture) points(t *testing.T) int {
	t.Helper()
	u, err := f.users.FindByID(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	return u.Points
}

func TestVerifyAutoVerifiedAwardsOnce(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)

	out, err := f.svc.Verify(ctx, f.user.ID, f.cert.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Decision != model.StatusAutoVerified || out.Score != 92 {
		t.Fatalf("outcome: %+v", out)
	}
	if out.Award == nil || out.Award.PointsAwarded != testAwards.CertificateVerified {
		t.Fatalf("award: %+v", out.Award)
	}

	// verifikasi ulang dari status auto_verified tidak memberi award lagi
	out, err = f.svc.Verify(ctx, f.user.ID, f.cert.ID)
	if err != nil {
		t.Fatalf("re-verify: %v", err)
	}
	if out.Award != nil {
		t.Fatalf("re-verify must not award, got %+v", out.Award)
	}
	if got := f.points(t); got != testAwards.CertificateVerified {
		t.Fatalf("points: want=%d got=%d", testAwards.CertificateVerified, got)
	}
	if len(f.history.results) != 2 {
		t.Fatalf("history entries: want=2 got=%d", len(f.history.results))
	}
}

func TestVerifyOracleFailureRoutesToPending(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)
	f.oracle.err = utils.NewError(utils.KindOracleUnavailable, "oracle scoring gagal", errors.New("timeout"))

	out, err := f.svc.Verify(ctx, f.user.ID, f.cert.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Decision != model.StatusPending || out.Score != 0 {
		t.Fatalf("outcome: %+v", out)
	}
	found := false
	for _, issue := range out.Issues {
		if issue == IssueOracleUnavailable {
			found = true
		}
	}
	if !found {
		t.Fatalf("issues should contain %s: %v", IssueOracleUnavailable, out.Issues)
	}
	if out.Award != nil || f.points(t) != 0 {
		t.Fatalf("oracle failure must not award")
	}
	if len(f.history.results) != 1 || f.history.results[0].Decision != model.StatusPending {
		t.Fatalf("history: %+v", f.history.results)
	}
}

func TestVerifyExtractionFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)
	f.extractor.err = ErrEvidenceUnreadable

	_, err := f.svc.Verify(ctx, f.user.ID, f.cert.ID)
	if !utils.IsKind(err, utils.KindEvidenceUnreadable) {
		t.Fatalf("want evidence_unreadable got=%v", err)
	}
	if utils.StatusOf(err) != 422 {
		t.Fatalf("status: want=422 got=%d", utils.StatusOf(err))
	}
	if f.certs.updates != 0 {
		t.Fatalf("certificate must not be updated")
	}
	if f.oracle.scoreCalls != 0 {
		t.Fatalf("oracle must not be called after extraction failure")
	}
	if len(f.history.results) != 1 || len(f.history.results[0].Notes) == 0 {
		t.Fatalf("history should record the failed attempt: %+v", f.history.results)
	}
}

func TestVerifyRequiresEvidence(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)
	bare := &model.Certificate{UserID: f.user.ID, Title: "Tanpa bukti"}
	_ = f.certs.Create(ctx, bare)

	_, err := f.svc.Verify(ctx, f.user.ID, bare.ID)
	if !utils.IsKind(err, utils.KindInvalidInput) {
		t.Fatalf("want invalid_input got=%v", err)
	}
	if f.oracle.scoreCalls != 0 {
		t.Fatalf("no external call expected")
	}
}

func TestVerifyOwnership(t *testing.T) {
	f := newVerificationFixture(t)
	_, err := f.svc.Verify(context.Background(), uuid.New(), f.cert.ID)
	if !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("want forbidden got=%v", err)
	}
}

func TestVerifyEditsFlagged(t *testing.T) {
	f := newVerificationFixture(t)
	f.oracle.assessment = OracleAssessment{Confidence: 97, EditsDetected: true}

	out, err := f.svc.Verify(context.Background(), f.user.ID, f.cert.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Decision != model.StatusFlagged || out.Award != nil {
		t.Fatalf("outcome: %+v", out)
	}
}

func TestVerifyTerminalReturnsStoredOutcome(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)
	f.issuers.check = IssuerCheck{Performed: true, Verified: true}
	f.oracle.assessment = OracleAssessment{Confidence: 70}

	out, err := f.svc.Verify(ctx, f.user.ID, f.cert.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Decision != model.StatusVerified || out.Score != 85 || !out.IssuerVerified {
		t.Fatalf("outcome: %+v", out)
	}

	calls := f.oracle.scoreCalls
	again, err := f.svc.Verify(ctx, f.user.ID, f.cert.ID)
	if err != nil {
		t.Fatalf("verify terminal: %v", err)
	}
	if !again.Final || again.Decision != model.StatusVerified || f.oracle.scoreCalls != calls {
		t.Fatalf("terminal should not re-run pipeline: %+v", again)
	}
}

func TestEvidenceReplacementResetsToPending(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)
	skills, _ := newFakeSkillRepo()
	ledger := NewGamificationService(f.users, testAwards, nil, utils.NewNopLogger())
	certs := NewCertificateService(f.certs, skills, ledger, utils.NewNopLogger())

	f.issuers.check = IssuerCheck{Performed: true, Verified: true}
	if _, err := f.svc.Verify(ctx, f.user.ID, f.cert.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	replaced, err := certs.ReplaceEvidence(ctx, f.user.ID, f.cert.ID, EvidenceInput{
		EvidenceURL:      "https://files.example.com/cert-v2.png",
		EvidenceFileType: model.EvidenceImage,
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if replaced.VerificationStatus != model.StatusPending || replaced.EvidenceVersion != 1 {
		t.Fatalf("after replace: status=%s version=%d", replaced.VerificationStatus, replaced.EvidenceVersion)
	}

	// verifikasi ulang -> verified lagi, tapi award tidak diberikan dua kali
	out, err := f.svc.Verify(ctx, f.user.ID, f.cert.ID)
	if err != nil {
		t.Fatalf("re-verify: %v", err)
	}
	if out.Decision != model.StatusVerified || out.Award != nil {
		t.Fatalf("re-verify: %+v", out)
	}
	if got := f.points(t); got != testAwards.CertificateVerified {
		t.Fatalf("points: want=%d got=%d", testAwards.CertificateVerified, got)
	}
}

func TestVerifyRetriesWhenEvidenceChangesMidway(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)

	first := true
	f.certs.beforeUpdate = func(id uuid.UUID) {
		if !first {
			return
		}
		first = false
		f.certs.mu.Lock()
		f.certs.certs[id].EvidenceVersion++
		f.certs.mu.Unlock()
	}

	out, err := f.svc.Verify(ctx, f.user.ID, f.cert.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Decision != model.StatusAutoVerified {
		t.Fatalf("decision: %s", out.Decision)
	}
	if f.oracle.scoreCalls != 2 {
		t.Fatalf("pipeline should re-run once: scoreCalls=%d", f.oracle.scoreCalls)
	}
	stored, _ := f.certs.FindByID(ctx, f.cert.ID)
	if stored.EvidenceVersion != 1 || stored.VerificationStatus != model.StatusAutoVerified {
		t.Fatalf("stored: version=%d status=%s", stored.EvidenceVersion, stored.VerificationStatus)
	}
}

func TestReviewManualDecision(t *testing.T) {
	ctx := context.Background()
	f := newVerificationFixture(t)
	f.oracle.assessment = OracleAssessment{Confidence: 60}

	if _, err := f.svc.Verify(ctx, f.user.ID, f.cert.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}
	out, err := f.svc.Review(ctx, uuid.New(), f.cert.ID, model.StatusVerified, "dicek manual")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if out.Decision != model.StatusVerified || out.Award == nil {
		t.Fatalf("review outcome: %+v", out)
	}
	last := f.history.results[len(f.history.results)-1]
	if last.Source != SourceManual || last.Decision != model.StatusVerified {
		t.Fatalf("history: %+v", last)
	}

	if _, err := f.svc.Review(ctx, uuid.New(), f.cert.ID, model.StatusFlagged, ""); !utils.IsKind(err, utils.KindInvalidInput) {
		t.Fatalf("flagged review: want invalid_input got=%v", err)
	}

	// keputusan yang sama: idempotent, tanpa award kedua
	again, err := f.svc.Review(ctx, uuid.New(), f.cert.ID, model.StatusVerified, "")
	if err != nil || !again.Final || again.Award != nil {
		t.Fatalf("repeat review: out=%+v err=%v", again, err)
	}

	// verified terminal: tidak bisa dibalik ke rejected tanpa bukti baru
	historyBefore := len(f.history.results)
	if _, err := f.svc.Review(ctx, uuid.New(), f.cert.ID, model.StatusRejected, "berubah pikiran"); !utils.IsKind(err, utils.KindInvalidInput) {
		t.Fatalf("opposite review: want invalid_input got=%v", err)
	}
	stored, err := f.certs.FindByID(ctx, f.cert.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.VerificationStatus != model.StatusVerified {
		t.Fatalf("stored status: want=verified got=%s", stored.VerificationStatus)
	}
	if len(f.history.results) != historyBefore {
		t.Fatalf("history: want=%d got=%d", historyBefore, len(f.history.results))
	}
}

package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/app/repository"
	"credential-engagement-backend/config"
	"credential-engagement-backend/utils"

	"github.com/google/uuid"
)

var testAwards = config.AwardConfig{
	CertificateCreated:  10,
	CertificateVerified: 25,
	SkillAdded:          5,
	DailyLogin:          2,
	Streak7:             50,
	Streak30:            200,
}

// fakeClock adalah jam yang bisa dimajukan manual.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// =========================
// UserRepository
// =========================

type fakeUserRepo struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*model.User
	achievements []model.Achievement
	commits      int
	conflicts    int
	// beforeCommit dipanggil (tanpa lock) sebelum commit diproses.
	beforeCommit func(change repository.EngagementChange)
	// commitErr membuat setiap commit gagal.
	commitErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*model.User{}}
}

func (r *fakeUserRepo) addUser(username string) *model.User {
	u := &model.User{ID: uuid.New(), Username: username, Role: utils.RoleLearner, IsActive: true, Level: 1}
	r.mu.Lock()
	r.users[u.ID] = u
	r.mu.Unlock()
	return u
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, utils.NewError(utils.KindNotFound, "user tidak ditemukan", nil)
	}
	cp := *u
	cp.Badges = append([]model.UserBadge(nil), u.Badges...)
	return &cp, nil
}

func (r *fakeUserRepo) HasAchievement(_ context.Context, userID uuid.UUID, action model.AwardAction, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.achievements {
		if a.UserID == userID && a.Action == action && a.ReferenceID == ref {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) CommitEngagement(_ context.Context, change repository.EngagementChange) error {
	if hook := r.beforeCommit; hook != nil {
		hook(change)
	}
	if r.commitErr != nil {
		return r.commitErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[change.UserID]
	if !ok || u.Version != change.ExpectedVersion {
		r.conflicts++
		return utils.ErrConcurrencyConflict
	}
	for _, b := range change.Badges {
		if u.HasBadge(b.Name) {
			r.conflicts++
			return utils.ErrConcurrencyConflict
		}
	}
	u.Points = change.Points
	u.Level = change.Level
	u.LearningStreak = change.Streak
	u.Version++
	u.Badges = append(u.Badges, change.Badges...)
	r.achievements = append(r.achievements, change.Achievements...)
	r.commits++
	return nil
}

func (r *fakeUserRepo) ListAchievements(_ context.Context, userID uuid.UUID, limit int) ([]model.Achievement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Achievement
	for i := len(r.achievements) - 1; i >= 0 && len(out) < limit; i-- {
		if r.achievements[i].UserID == userID {
			out = append(out, r.achievements[i])
		}
	}
	return out, nil
}

func (r *fakeUserRepo) achievementsOf(userID uuid.UUID) []model.Achievement {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Achievement
	for _, a := range r.achievements {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

// =========================
// CertificateRepository
// =========================

type fakeCertRepo struct {
	mu    sync.Mutex
	certs map[uuid.UUID]*model.Certificate
	// beforeUpdate dipanggil sebelum UpdateVerification (simulasi perubahan paralel).
	beforeUpdate func(id uuid.UUID)
	updates      int
	// skills (opsional) dipakai untuk mengisi SkillIDs seperti repository asli.
	skills *fakeSkillRepo
}

func newFakeCertRepo() *fakeCertRepo {
	return &fakeCertRepo{certs: map[uuid.UUID]*model.Certificate{}}
}

func (r *fakeCertRepo) Create(_ context.Context, cert *model.Certificate) error {
	if cert.ID == uuid.Nil {
		cert.ID = uuid.New()
	}
	if cert.VerificationStatus == "" {
		cert.VerificationStatus = model.StatusPending
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cert
	r.certs[cert.ID] = &cp
	return nil
}

func (r *fakeCertRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return nil, utils.NewError(utils.KindNotFound, "sertifikat tidak ditemukan", nil)
	}
	cp := *c
	if r.skills != nil {
		cp.SkillIDs = r.skills.skillsOf(id)
	}
	return &cp, nil
}

func (r *fakeCertRepo) FindByUserID(_ context.Context, userID uuid.UUID) ([]model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Certificate
	for _, c := range r.certs {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCertRepo) UpdateVerification(_ context.Context, id uuid.UUID, expected model.VerificationStatus, version int, upd repository.VerificationUpdate) error {
	if hook := r.beforeUpdate; hook != nil {
		hook(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok || c.VerificationStatus != expected || c.EvidenceVersion != version {
		return utils.ErrConcurrencyConflict
	}
	checked := upd.CheckedAt
	c.VerificationStatus = upd.Status
	c.VerificationScore = upd.Score
	c.VerificationDetails = model.VerificationDetails{
		Confidence:     upd.Confidence,
		IssuerVerified: upd.IssuerVerified,
		EditsDetected:  upd.EditsDetected,
		Issues:         upd.Issues,
		CheckedAt:      &checked,
	}
	r.updates++
	return nil
}

func (r *fakeCertRepo) ReplaceEvidence(ctx context.Context, id uuid.UUID, repl repository.EvidenceReplacement) (*model.Certificate, error) {
	r.mu.Lock()
	c, ok := r.certs[id]
	if !ok {
		r.mu.Unlock()
		return nil, utils.NewError(utils.KindNotFound, "sertifikat tidak ditemukan", nil)
	}
	c.EvidenceURL = repl.EvidenceURL
	c.EvidenceFileType = repl.EvidenceFileType
	if repl.CredentialURL != nil {
		c.CredentialURL = *repl.CredentialURL
	}
	c.EvidenceVersion++
	c.VerificationStatus = model.StatusPending
	c.VerificationScore = 0
	c.VerificationDetails = model.VerificationDetails{}
	r.mu.Unlock()
	return r.FindByID(ctx, id)
}

func (r *fakeCertRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.certs[id]; !ok {
		return utils.NewError(utils.KindNotFound, "sertifikat tidak ditemukan", nil)
	}
	delete(r.certs, id)
	return nil
}

// =========================
// VerificationHistoryRepository
// =========================

type fakeHistoryRepo struct {
	mu      sync.Mutex
	results []model.VerificationResult
}

func (r *fakeHistoryRepo) Append(_ context.Context, result *model.VerificationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, *result)
	return nil
}

func (r *fakeHistoryRepo) FindByCertificateID(_ context.Context, certificateID string) ([]model.VerificationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.VerificationResult
	for _, res := range r.results {
		if res.CertificateID == certificateID {
			out = append(out, res)
		}
	}
	return out, nil
}

// =========================
// Extractor / Oracle / Issuer
// =========================

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) Extract(context.Context, EvidenceRef) (string, error) {
	return e.text, e.err
}

type fakeOracle struct {
	mu           sync.Mutex
	assessment   OracleAssessment
	err          error
	integrity    *IntegritySignal
	integrityErr error
	scoreCalls   int
}

func (o *fakeOracle) Score(context.Context, string, ClaimedMetadata) (OracleAssessment, error) {
	o.mu.Lock()
	o.scoreCalls++
	o.mu.Unlock()
	return o.assessment, o.err
}

func (o *fakeOracle) CheckIntegrity(context.Context, string) (*IntegritySignal, error) {
	return o.integrity, o.integrityErr
}

type fakeIssuers struct {
	check IssuerCheck
	err   error
}

func (f *fakeIssuers) Lookup(context.Context, ClaimedMetadata) (IssuerCheck, error) {
	return f.check, f.err
}

type fakeIssuerRepo struct {
	issuers []model.TrustedIssuer
}

func (r *fakeIssuerRepo) FindByName(_ context.Context, name string) (*model.TrustedIssuer, error) {
	for i := range r.issuers {
		if equalFoldTrim(r.issuers[i].Name, name) {
			return &r.issuers[i], nil
		}
	}
	return nil, nil
}

func (r *fakeIssuerRepo) FindAll(context.Context) ([]model.TrustedIssuer, error) {
	return r.issuers, nil
}

func (r *fakeIssuerRepo) Upsert(_ context.Context, issuer *model.TrustedIssuer) error {
	r.issuers = append(r.issuers, *issuer)
	return nil
}

// =========================
// SkillRepository
// =========================

type fakeSkillRepo struct {
	mu      sync.Mutex
	catalog map[uuid.UUID]model.Skill
	// key: userID|skillID
	userSkills map[[2]uuid.UUID]*model.UserSkill
}

func newFakeSkillRepo(names ...string) (*fakeSkillRepo, []uuid.UUID) {
	r := &fakeSkillRepo{catalog: map[uuid.UUID]model.Skill{}, userSkills: map[[2]uuid.UUID]*model.UserSkill{}}
	var ids []uuid.UUID
	for _, n := range names {
		s := model.Skill{ID: uuid.New(), Name: n}
		r.catalog[s.ID] = s
		ids = append(ids, s.ID)
	}
	return r, ids
}

func (r *fakeSkillRepo) FindAll(context.Context) ([]model.Skill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Skill
	for _, s := range r.catalog {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeSkillRepo) CountExisting(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.catalog[id]; ok {
			n++
		}
	}
	return n, nil
}

func (r *fakeSkillRepo) FindUserSkills(_ context.Context, userID uuid.UUID) ([]model.UserSkill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.UserSkill
	for k, us := range r.userSkills {
		if k[0] == userID {
			out = append(out, *us)
		}
	}
	return out, nil
}

func (r *fakeSkillRepo) userSkill(userID, skillID uuid.UUID) *model.UserSkill {
	r.mu.Lock()
	defer r.mu.Unlock()
	us, ok := r.userSkills[[2]uuid.UUID{userID, skillID}]
	if !ok {
		return nil
	}
	cp := *us
	return &cp
}

// skillsOf mengembalikan skill yang didukung sertifikat (urut nama).
func (r *fakeSkillRepo) skillsOf(certID uuid.UUID) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for k, us := range r.userSkills {
		for _, c := range us.Certificates {
			if c.CertificateID == certID {
				out = append(out, k[1])
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.catalog[out[i]].Name < r.catalog[out[j]].Name })
	return out
}

func (r *fakeSkillRepo) AttachCertificate(_ context.Context, userID, skillID, certID uuid.UUID, delta int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uuid.UUID{userID, skillID}
	us, ok := r.userSkills[key]
	if !ok {
		us = &model.UserSkill{ID: uuid.New(), UserID: userID, SkillID: skillID, Points: clampScore(delta)}
		us.Certificates = []model.UserSkillCertificate{{UserSkillID: us.ID, CertificateID: certID}}
		r.userSkills[key] = us
		return true, nil
	}
	for _, c := range us.Certificates {
		if c.CertificateID == certID {
			return false, nil
		}
	}
	us.Points = clampScore(us.Points + delta)
	us.Certificates = append(us.Certificates, model.UserSkillCertificate{UserSkillID: us.ID, CertificateID: certID})
	return false, nil
}

func (r *fakeSkillRepo) DetachCertificate(_ context.Context, userID, skillID, certID uuid.UUID, delta int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uuid.UUID{userID, skillID}
	us, ok := r.userSkills[key]
	if !ok {
		return false, nil
	}
	kept := us.Certificates[:0]
	found := false
	for _, c := range us.Certificates {
		if c.CertificateID == certID {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return false, nil
	}
	us.Certificates = kept
	if len(kept) == 0 {
		delete(r.userSkills, key)
		return true, nil
	}
	us.Points = clampScore(us.Points - delta)
	return false, nil
}

// =========================
// LeaderboardRepository
// =========================

type fakeLeaderboardRepo struct {
	mu     sync.Mutex
	scores map[model.LeaderboardMetric][]repository.MetricScore
	calls  int
}

func (r *fakeLeaderboardRepo) set(metric model.LeaderboardMetric, rows ...repository.MetricScore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scores == nil {
		r.scores = map[model.LeaderboardMetric][]repository.MetricScore{}
	}
	r.scores[metric] = rows
}

func (r *fakeLeaderboardRepo) TopUsers(_ context.Context, metric model.LeaderboardMetric, _ *time.Time, limit int) ([]repository.MetricScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	rows := append([]repository.MetricScore(nil), r.scores[metric]...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeLeaderboardRepo) CountAbove(_ context.Context, metric model.LeaderboardMetric, _ *time.Time, score int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.scores[metric] {
		if row.Score > score {
			n++
		}
	}
	return n, nil
}

func (r *fakeLeaderboardRepo) ScoreOf(_ context.Context, metric model.LeaderboardMetric, _ *time.Time, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.scores[metric] {
		if row.UserID == userID {
			return row.Score, nil
		}
	}
	return 0, nil
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

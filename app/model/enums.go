package model

// VerificationStatus = decision bucket sebuah sertifikat.
type VerificationStatus string

const (
	StatusPending      VerificationStatus = "pending"
	StatusAutoVerified VerificationStatus = "auto_verified"
	StatusFlagged      VerificationStatus = "flagged"
	StatusVerified     VerificationStatus = "verified"
	StatusRejected     VerificationStatus = "rejected"
)

// IsVerifiedClass: status yang dihitung sebagai "terverifikasi" untuk award poin.
func (s VerificationStatus) IsVerifiedClass() bool {
	return s == StatusAutoVerified || s == StatusVerified
}

// IsTerminal: verified/rejected hanya bisa berubah lewat penggantian bukti.
func (s VerificationStatus) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// EvidenceType adalah tag tipe file bukti.
type EvidenceType string

const (
	EvidenceImage EvidenceType = "image"
	EvidencePDF   EvidenceType = "pdf"
	EvidenceURL   EvidenceType = "url"
)

// AwardAction adalah aksi yang menghasilkan poin (lihat config.AwardConfig).
type AwardAction string

const (
	ActionCertificateCreated  AwardAction = "certificate_created"
	ActionCertificateVerified AwardAction = "certificate_verified"
	ActionSkillAdded          AwardAction = "skill_added"
	ActionDailyLogin          AwardAction = "daily_login"
	ActionStreakMilestone     AwardAction = "streak_milestone"
	ActionLevelUp             AwardAction = "level_up"
	ActionAdminAdjustment     AwardAction = "admin_adjustment"
)

const (
	BadgeWeekWarrior   = "Week Warrior"
	BadgeMonthlyMaster = "Monthly Master"
)

type LeaderboardMetric string

const (
	MetricPoints       LeaderboardMetric = "points"
	MetricCertificates LeaderboardMetric = "certificates"
	MetricSkills       LeaderboardMetric = "skills"
	MetricStreak       LeaderboardMetric = "streak"
)

func (m LeaderboardMetric) Valid() bool {
	switch m {
	case MetricPoints, MetricCertificates, MetricSkills, MetricStreak:
		return true
	}
	return false
}

type LeaderboardPeriod string

const (
	PeriodWeekly  LeaderboardPeriod = "weekly"
	PeriodMonthly LeaderboardPeriod = "monthly"
	PeriodAllTime LeaderboardPeriod = "alltime"
)

func (p LeaderboardPeriod) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

// LeaderboardKey mengidentifikasi satu snapshot leaderboard.
type LeaderboardKey struct {
	Metric LeaderboardMetric
	Period LeaderboardPeriod
}

func (k LeaderboardKey) String() string {
	return string(k.Metric) + ":" + string(k.Period)
}

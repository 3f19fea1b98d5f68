package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User menyimpan identitas + field engagement (points, level, streak, badges).
// Field engagement hanya diubah lewat GamificationService (commit dengan Version).
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username string    `gorm:"unique;not null" json:"username"`
	FullName string    `json:"fullName"`
	Role     string    `gorm:"type:varchar(20);not null;default:'learner'" json:"role"`
	IsActive bool      `gorm:"default:true" json:"isActive"`

	Points         int            `gorm:"not null;default:0" json:"points"`
	Level          int            `gorm:"not null;default:1" json:"level"`
	LearningStreak LearningStreak `gorm:"embedded;embeddedPrefix:streak_" json:"learningStreak"`
	Badges         []UserBadge    `gorm:"foreignKey:UserID" json:"badges,omitempty"`

	// Version dinaikkan setiap commit engagement (optimistic concurrency).
	Version int `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasBadge mengecek badge berdasarkan nama (badge unik per user).
func (u *User) HasBadge(name string) bool {
	for _, b := range u.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// LearningStreak: jumlah hari berturut-turut dengan aktivitas. LastActive granularity hari.
type LearningStreak struct {
	Current    int        `gorm:"not null;default:0" json:"current"`
	Longest    int        `gorm:"not null;default:0" json:"longest"`
	LastActive *time.Time `json:"lastActive"`
}

// UserBadge: satu nama badge paling banyak sekali per user (unique index).
type UserBadge struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_badge_name,priority:1" json:"userId"`
	Name      string    `gorm:"not null;uniqueIndex:idx_user_badge_name,priority:2" json:"name"`
	AwardedAt time.Time `json:"awardedAt"`
}

func (b *UserBadge) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Achievement adalah log append-only setiap pemberian poin / badge / level up.
type Achievement struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID   `gorm:"type:uuid;not null;index:idx_achievement_user_date,priority:1" json:"userId"`
	Action      AwardAction `gorm:"type:varchar(40);not null" json:"action"`
	Title       string      `gorm:"not null" json:"title"`
	Points      int         `gorm:"not null;default:0" json:"points"`
	ReferenceID string      `gorm:"type:varchar(64);index" json:"referenceId,omitempty"`
	CreatedAt   time.Time   `gorm:"index:idx_achievement_user_date,priority:2" json:"createdAt"`
}

func (a *Achievement) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Skill adalah katalog skill (di-seed).
type Skill struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"unique;not null" json:"name"`
	Category  string    `json:"category"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (s *Skill) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// UserSkill: tally poin per (user, skill) dalam [0,100] + daftar sertifikat pendukung.
// Dihapus ketika daftar sertifikat kosong.
type UserSkill struct {
	ID           uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_user_skill,priority:1" json:"userId"`
	SkillID      uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_user_skill,priority:2" json:"skillId"`
	Skill        *Skill                 `gorm:"foreignKey:SkillID" json:"skill,omitempty"`
	Points       int                    `gorm:"not null;default:0;check:points >= 0 AND points <= 100" json:"points"`
	Certificates []UserSkillCertificate `gorm:"foreignKey:UserSkillID;constraint:OnDelete:CASCADE" json:"certificates"`
	CreatedAt    time.Time              `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time              `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (s *UserSkill) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// UserSkillCertificate adalah referensi sertifikat pendukung sebuah UserSkill.
type UserSkillCertificate struct {
	UserSkillID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	CertificateID uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"certificateId"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// Certificate menyimpan klaim sertifikat + bukti + status verifikasi.
// Invariant: EvidenceURL atau CredentialURL harus terisi.
type Certificate struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`

	Title         string     `gorm:"not null" json:"title"`
	Issuer        string     `json:"issuer"`
	IssueDate     *time.Time `json:"issueDate,omitempty"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
	CredentialID  string     `json:"credentialId,omitempty"`
	CredentialURL string     `json:"credentialUrl,omitempty"`

	EvidenceURL      string       `json:"evidenceUrl,omitempty"`
	EvidenceFileType EvidenceType `gorm:"type:varchar(10)" json:"evidenceFileType,omitempty"`
	// EvidenceVersion naik setiap bukti diganti; keputusan verifikasi untuk versi lama ditolak.
	EvidenceVersion int `gorm:"not null;default:0" json:"evidenceVersion"`

	VerificationStatus  VerificationStatus  `gorm:"type:varchar(20);not null;default:'pending';check:verification_status IN ('pending','auto_verified','flagged','verified','rejected')" json:"verificationStatus"`
	VerificationScore   int                 `gorm:"not null;default:0" json:"verificationScore"`
	VerificationDetails VerificationDetails `gorm:"embedded;embeddedPrefix:verification_" json:"verificationDetails"`

	SkillIDs []uuid.UUID `gorm:"-" json:"skillIds"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (c *Certificate) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// HasEvidence: bukti file atau URL kredensial tersedia.
func (c *Certificate) HasEvidence() bool {
	return c.EvidenceURL != "" || c.CredentialURL != ""
}

// VerificationDetails adalah ringkasan hasil verifikasi terakhir.
type VerificationDetails struct {
	Confidence     int                         `gorm:"not null;default:0" json:"confidence"`
	IssuerVerified bool                        `gorm:"not null;default:false" json:"issuerVerified"`
	EditsDetected  bool                        `gorm:"not null;default:false" json:"editsDetected"`
	Issues         datatypes.JSONSlice[string] `json:"issues"`
	CheckedAt      *time.Time                  `json:"checkedAt,omitempty"`
}

// TrustedIssuer adalah entri database penerbit untuk cross-check klaim sertifikat.
type TrustedIssuer struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name                string    `gorm:"unique;not null" json:"name"`
	Domain              string    `json:"domain"`
	CredentialIDPattern string    `json:"credentialIdPattern"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (t *TrustedIssuer) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

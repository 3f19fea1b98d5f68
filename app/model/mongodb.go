package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerificationResult adalah 1 dokumen riwayat verifikasi (collection: verification_results).
// Append-only: tidak pernah diupdate setelah insert.
type VerificationResult struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CertificateID   string             `bson:"certificateId" json:"certificateId"`
	UserID          string             `bson:"userId" json:"userId"`
	EvidenceVersion int                `bson:"evidenceVersion" json:"evidenceVersion"`
	Source          string             `bson:"source" json:"source"` // auto / manual
	OCRText         string             `bson:"ocrText" json:"ocrText"`
	Confidence      int                `bson:"confidence" json:"confidence"`
	Score           int                `bson:"score" json:"score"`
	Decision        VerificationStatus `bson:"decision" json:"decision"`
	IssuerVerified  bool               `bson:"issuerVerified" json:"issuerVerified"`
	EditsDetected   bool               `bson:"editsDetected" json:"editsDetected"`
	Issues          []string           `bson:"issues" json:"issues"`
	Notes           []VerificationNote `bson:"notes" json:"notes"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}

// VerificationNote adalah catatan bertimestamp di dalam satu percobaan verifikasi.
type VerificationNote struct {
	At      time.Time `bson:"at" json:"at"`
	Message string    `bson:"message" json:"message"`
}

// LeaderboardSnapshot adalah hasil ranking ter-cache untuk 1 pasangan (metric, period).
// Selalu bisa dibangun ulang dari data user.
type LeaderboardSnapshot struct {
	Metric      LeaderboardMetric    `bson:"metric" json:"metric"`
	Period      LeaderboardPeriod    `bson:"period" json:"period"`
	Rankings    []LeaderboardRanking `bson:"rankings" json:"rankings"`
	LastUpdated time.Time            `bson:"lastUpdated" json:"lastUpdated"`
}

// LeaderboardRanking: RankChange = rank sebelumnya - rank baru (0 untuk user baru).
type LeaderboardRanking struct {
	UserID     string `bson:"userId" json:"userId"`
	Username   string `bson:"username" json:"username"`
	Score      int64  `bson:"score" json:"score"`
	Rank       int    `bson:"rank" json:"rank"`
	RankChange int    `bson:"rankChange" json:"rankChange"`
}

package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ReportFilter menentukan scope data statistik:
// - UserIDs kosong  => semua user
// - UserIDs diisi   => hanya riwayat verifikasi milik userId tersebut (string UUID)
type ReportFilter struct {
	UserIDs []string
	Source  string // auto / manual / kosong = semua
}

// UserVerificationScore menyimpan agregat per user (untuk top verified users).
type UserVerificationScore struct {
	UserID        string  `json:"userId"`
	VerifiedCount int64   `json:"verifiedCount"`
	AvgConfidence float64 `json:"avgConfidence"`
}

// ReportResult adalah struktur hasil agregasi riwayat verifikasi.
type ReportResult struct {
	TotalAttempts     int64                   `json:"totalAttempts"`
	TotalByDecision   map[string]int64        `json:"totalByDecision"`
	TotalByPeriod     map[string]int64        `json:"totalByPeriod"` // key: "YYYY-MM"
	AverageConfidence float64                 `json:"averageConfidence"`
	IssueDistribution map[string]int64        `json:"issueDistribution"`
	TopVerifiedUsers  []UserVerificationScore `json:"topVerifiedUsers"`
}

// ReportRepository menangani query statistik verifikasi ke MongoDB.
type ReportRepository interface {
	// GetStatistics menjalankan agregasi statistik berdasarkan filter.
	GetStatistics(ctx context.Context, filter ReportFilter) (*ReportResult, error)
}

type reportRepository struct {
	mongo *mongo.Database
}

// NewReportRepository membuat instance baru reportRepository.
func NewReportRepository(mongoDB *mongo.Database) ReportRepository {
	return &reportRepository{mongo: mongoDB}
}

// buildMatchFilter membentuk filter dasar untuk query Mongo.
func buildMatchFilter(filter ReportFilter) bson.M {
	match := bson.M{}
	if len(filter.UserIDs) > 0 {
		match["userId"] = bson.M{"$in": filter.UserIDs}
	}
	if filter.Source != "" {
		match["source"] = filter.Source
	}
	return match
}

// countBy menjalankan $group sederhana (_id -> count) dan mengisi dst.
func countBy(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, dst map[string]int64) error {
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return err
		}
		if row.ID == "" {
			row.ID = "unknown"
		}
		dst[row.ID] = row.Count
	}
	return cur.Err()
}

// GetStatistics menjalankan beberapa agregasi di MongoDB:
// - totalAttempts
// - totalByDecision
// - totalByPeriod (YYYY-MM dari createdAt)
// - averageConfidence
// - issueDistribution
// - topVerifiedUsers
func (r *reportRepository) GetStatistics(ctx context.Context, filter ReportFilter) (*ReportResult, error) {
	coll := r.mongo.Collection(verificationCollection)
	match := buildMatchFilter(filter)

	result := &ReportResult{
		TotalByDecision:   make(map[string]int64),
		TotalByPeriod:     make(map[string]int64),
		IssueDistribution: make(map[string]int64),
		TopVerifiedUsers:  []UserVerificationScore{},
	}

	// =========================
	// 1) Total attempts
	// =========================
	total, err := coll.CountDocuments(ctx, match)
	if err != nil {
		return nil, err
	}
	result.TotalAttempts = total

	// =========================
	// 2) Total by decision
	// =========================
	err = countBy(ctx, coll, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$decision", "count": bson.M{"$sum": 1}}}},
	}, result.TotalByDecision)
	if err != nil {
		return nil, err
	}

	// =========================
	// 3) Total by period (YYYY-MM dari createdAt)
	// =========================
	err = countBy(ctx, coll, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$createdAt"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}, result.TotalByPeriod)
	if err != nil {
		return nil, err
	}

	// =========================
	// 4) Distribusi issue
	// =========================
	err = countBy(ctx, coll, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$unwind", Value: "$issues"}},
		{{Key: "$group", Value: bson.M{"_id": "$issues", "count": bson.M{"$sum": 1}}}},
	}, result.IssueDistribution)
	if err != nil {
		return nil, err
	}

	// =========================
	// 5) Rata-rata confidence
	// =========================
	cur, err := coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$confidence"}}}},
	})
	if err != nil {
		return nil, err
	}
	if cur.Next(ctx) {
		var row struct {
			Avg float64 `bson:"avg"`
		}
		if err := cur.Decode(&row); err != nil {
			_ = cur.Close(ctx)
			return nil, err
		}
		result.AverageConfidence = row.Avg
	}
	_ = cur.Close(ctx)

	// =========================
	// 6) Top verified users (jumlah keputusan verified-class)
	// =========================
	verifiedMatch := bson.M{}
	for k, v := range match {
		verifiedMatch[k] = v
	}
	verifiedMatch["decision"] = bson.M{"$in": []string{"auto_verified", "verified"}}

	cur, err = coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: verifiedMatch}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$userId",
			"verifiedCount": bson.M{"$sum": 1},
			"avgConfidence": bson.M{"$avg": "$confidence"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "verifiedCount", Value: -1}, {Key: "avgConfidence", Value: -1}}}},
		{{Key: "$limit", Value: 10}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID            string  `bson:"_id"`
			VerifiedCount int64   `bson:"verifiedCount"`
			AvgConfidence float64 `bson:"avgConfidence"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		if row.ID == "" {
			continue
		}
		result.TopVerifiedUsers = append(result.TopVerifiedUsers, UserVerificationScore{
			UserID:        row.ID,
			VerifiedCount: row.VerifiedCount,
			AvgConfidence: row.AvgConfidence,
		})
	}

	return result, cur.Err()
}

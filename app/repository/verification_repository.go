package repository

import (
	"context"
	"fmt"
	"time"

	"credential-engagement-backend/app/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const verificationCollection = "verification_results"

// VerificationHistoryRepository menyimpan riwayat percobaan verifikasi (append-only) di MongoDB.
type VerificationHistoryRepository interface {
	// Append menyisipkan 1 dokumen hasil verifikasi.
	Append(ctx context.Context, result *model.VerificationResult) error

	// FindByCertificateID mengambil seluruh riwayat sebuah sertifikat, urut waktu.
	FindByCertificateID(ctx context.Context, certificateID string) ([]model.VerificationResult, error)
}

type verificationHistoryRepository struct {
	mongoDB *mongo.Database
}

func NewVerificationHistoryRepository(mongoDB *mongo.Database) VerificationHistoryRepository {
	return &verificationHistoryRepository{mongoDB: mongoDB}
}

func (r *verificationHistoryRepository) Append(ctx context.Context, result *model.VerificationResult) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	if result.Issues == nil {
		result.Issues = []string{}
	}
	if result.Notes == nil {
		result.Notes = []model.VerificationNote{}
	}

	res, err := r.mongoDB.Collection(verificationCollection).InsertOne(ctx, result)
	if err != nil {
		return fmt.Errorf("mongo insert error: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		result.ID = oid
	}
	return nil
}

func (r *verificationHistoryRepository) FindByCertificateID(ctx context.Context, certificateID string) ([]model.VerificationResult, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.mongoDB.Collection(verificationCollection).
		Find(ctx, bson.M{"certificateId": certificateID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []model.VerificationResult{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

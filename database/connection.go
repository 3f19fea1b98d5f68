package database

import (
	"context"
	"fmt"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/config"
	"credential-engagement-backend/utils"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Database struct {
	Postgres *gorm.DB
	Mongo    *mongo.Database
	// Redis nil jika REDIS_ADDR kosong.
	Redis *redis.Client

	mongoClient *mongo.Client
}

// Models adalah daftar model Postgres yang dimigrasi (dipakai juga oleh test sqlite).
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.UserBadge{},
		&model.Achievement{},
		&model.Skill{},
		&model.UserSkill{},
		&model.UserSkillCertificate{},
		&model.Certificate{},
		&model.TrustedIssuer{},
	}
}

func InitDB(ctx context.Context, cfg config.Config, log *utils.Logger) (*Database, error) {
	// 1. Setup PostgreSQL
	// TranslateError: unique violation => gorm.ErrDuplicatedKey (dipakai commit badge)
	pgDB, err := gorm.Open(postgres.Open(cfg.Postgres.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("gagal koneksi ke postgres: %w", err)
	}

	// Auto Migrate
	log.Info("running postgres migrations")
	if err := pgDB.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("gagal migrasi database: %w", err)
	}

	// 2. Setup MongoDB
	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(mctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("gagal koneksi ke mongo: %w", err)
	}
	if err := mongoClient.Ping(mctx, nil); err != nil {
		return nil, fmt.Errorf("gagal ping mongo: %w", err)
	}
	mongoDatabase := mongoClient.Database(cfg.Mongo.DBName)
	if err := ensureIndexes(mctx, mongoDatabase); err != nil {
		return nil, fmt.Errorf("gagal membuat index mongo: %w", err)
	}

	db := &Database{Postgres: pgDB, Mongo: mongoDatabase, mongoClient: mongoClient}

	// 3. Redis (opsional)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(mctx).Err(); err != nil {
			return nil, fmt.Errorf("gagal ping redis: %w", err)
		}
		db.Redis = rdb
	}

	log.Info("connected to databases", "postgres", cfg.Postgres.Host, "mongo", cfg.Mongo.DBName, "redis", cfg.RedisAddr != "")
	return db, nil
}

// ensureIndexes: riwayat dibaca per sertifikat (urut waktu) dan diagregasi per user.
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("verification_results").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "certificateId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection("leaderboard_snapshots").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "metric", Value: 1}, {Key: "period", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (d *Database) Close(ctx context.Context) {
	if sqlDB, err := d.Postgres.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if d.mongoClient != nil {
		_ = d.mongoClient.Disconnect(ctx)
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

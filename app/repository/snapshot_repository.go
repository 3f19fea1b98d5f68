package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credential-engagement-backend/app/model"
	"credential-engagement-backend/utils"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SnapshotStore adalah penyimpanan persisten snapshot leaderboard.
type SnapshotStore = utils.SnapshotStore[model.LeaderboardKey, []model.LeaderboardRanking]

type snapshotEntry = utils.CacheEntry[[]model.LeaderboardRanking]

// =========================
// MongoDB (collection: leaderboard_snapshots)
// =========================

type mongoSnapshotStore struct {
	coll *mongo.Collection
}

// NewMongoSnapshotStore menyimpan 1 dokumen per (metric, period).
func NewMongoSnapshotStore(mongoDB *mongo.Database) SnapshotStore {
	return &mongoSnapshotStore{coll: mongoDB.Collection("leaderboard_snapshots")}
}

func (s *mongoSnapshotStore) Load(ctx context.Context, key model.LeaderboardKey) (*snapshotEntry, error) {
	var doc model.LeaderboardSnapshot
	err := s.coll.FindOne(ctx, bson.M{"metric": key.Metric, "period": key.Period}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshotEntry{Value: doc.Rankings, UpdatedAt: doc.LastUpdated.UTC()}, nil
}

func (s *mongoSnapshotStore) Save(ctx context.Context, key model.LeaderboardKey, entry snapshotEntry) error {
	doc := model.LeaderboardSnapshot{
		Metric:      key.Metric,
		Period:      key.Period,
		Rankings:    entry.Value,
		LastUpdated: entry.UpdatedAt,
	}
	if doc.Rankings == nil {
		doc.Rankings = []model.LeaderboardRanking{}
	}
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"metric": key.Metric, "period": key.Period},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo upsert snapshot: %w", err)
	}
	return nil
}

// =========================
// Redis (JSON per key)
// =========================

const redisSnapshotTTL = 24 * time.Hour

type redisSnapshotStore struct {
	rdb *redis.Client
}

// NewRedisSnapshotStore menyimpan snapshot sebagai JSON di key "leaderboard:<metric>:<period>".
func NewRedisSnapshotStore(rdb *redis.Client) SnapshotStore {
	return &redisSnapshotStore{rdb: rdb}
}

func redisSnapshotKey(key model.LeaderboardKey) string {
	return "leaderboard:" + key.String()
}

func (s *redisSnapshotStore) Load(ctx context.Context, key model.LeaderboardKey) (*snapshotEntry, error) {
	raw, err := s.rdb.Get(ctx, redisSnapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc model.LeaderboardSnapshot
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshotEntry{Value: doc.Rankings, UpdatedAt: doc.LastUpdated.UTC()}, nil
}

func (s *redisSnapshotStore) Save(ctx context.Context, key model.LeaderboardKey, entry snapshotEntry) error {
	doc := model.LeaderboardSnapshot{
		Metric:      key.Metric,
		Period:      key.Period,
		Rankings:    entry.Value,
		LastUpdated: entry.UpdatedAt,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisSnapshotKey(key), raw, redisSnapshotTTL).Err()
}

// NewMemorySnapshotStore dipakai bila LEADERBOARD_STORE=memory (dev/test).
func NewMemorySnapshotStore() SnapshotStore {
	return utils.NewMemorySnapshotStore[model.LeaderboardKey, []model.LeaderboardRanking]()
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/pkg/models"
)

var ErrNoSnapshot = errors.New("no catalog snapshot available")

const (
	snapshotKey   = "gamepulse:snapshot:latest"
	snapshotIDKey = "gamepulse:snapshot:id"
)

type SnapshotStore interface {
	Save(ctx context.Context, snapshot *models.Snapshot) error
	Latest(ctx context.Context) (*models.Snapshot, error)
	// LatestID returns the id of the latest snapshot without loading its games.
	LatestID(ctx context.Context) (uuid.UUID, error)
}

type MemorySnapshotStore struct {
	mu       sync.RWMutex
	snapshot *models.Snapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (s *MemorySnapshotStore) Save(_ context.Context, snapshot *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	return nil
}

func (s *MemorySnapshotStore) Latest(_ context.Context) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return s.snapshot, nil
}

func (s *MemorySnapshotStore) LatestID(ctx context.Context) (uuid.UUID, error) {
	snapshot, err := s.Latest(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return snapshot.ID, nil
}

// RedisSnapshotStore shares the latest snapshot between replicas. Redis is a cache here:
// writes to it are best effort, and the local copy answers reads whenever Redis misses,
// fails or holds an undecodable entry.
type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
	local  *MemorySnapshotStore
	logger *logrus.Logger
}

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisSnapshotStore {
	return &RedisSnapshotStore{
		client: client,
		ttl:    ttl,
		local:  NewMemorySnapshotStore(),
		logger: logger,
	}
}

func (s *RedisSnapshotStore) Save(ctx context.Context, snapshot *models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_ = s.local.Save(ctx, snapshot)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, snapshotKey, data, s.ttl)
		pipe.Set(ctx, snapshotIDKey, snapshot.ID.String(), s.ttl)
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("snapshot_id", snapshot.ID).
			Warn("Failed to cache snapshot in Redis, serving local copy")
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"snapshot_id": snapshot.ID,
		"bytes":       len(data),
	}).Debug("Snapshot cached in Redis")
	return nil
}

func (s *RedisSnapshotStore) Latest(ctx context.Context) (*models.Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.local.Latest(ctx)
	}
	if err != nil {
		s.logger.WithError(err).Warn("Redis snapshot read failed, using local copy")
		return s.local.Latest(ctx)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.logger.WithError(err).Warn("Cached snapshot is not decodable, using local copy")
		return s.local.Latest(ctx)
	}
	return &snapshot, nil
}

func (s *RedisSnapshotStore) LatestID(ctx context.Context) (uuid.UUID, error) {
	raw, err := s.client.Get(ctx, snapshotIDKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WithError(err).Warn("Redis snapshot id read failed, using local copy")
		}
		return s.local.LatestID(ctx)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		s.logger.WithError(err).Warn("Cached snapshot id is not a uuid, using local copy")
		return s.local.LatestID(ctx)
	}
	return id, nil
}

package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/pkg/models"
)

// RateLimitService applies a sliding-window limit per client and action. With Redis the
// window is shared between replicas; without it each process keeps its own window.
type RateLimitService struct {
	limit       int
	window      time.Duration
	logger      *logrus.Logger
	redisClient *redis.Client

	mu        sync.Mutex
	local     map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimitService(cfg config.RateLimitConfig, logger *logrus.Logger, redisClient *redis.Client) *RateLimitService {
	return &RateLimitService{
		limit:       cfg.Refresh,
		window:      cfg.Window,
		logger:      logger,
		redisClient: redisClient,
		local:       make(map[string][]time.Time),
		now:         time.Now,
	}
}

func (s *RateLimitService) IsAllowed(ctx context.Context, clientID, action string) (bool, *models.RateLimitInfo, error) {
	if s.limit <= 0 {
		return true, &models.RateLimitInfo{Limit: 0, Remaining: 0}, nil
	}

	key := fmt.Sprintf("rate_limit:%s:%s", action, clientID)
	var (
		count int
		err   error
	)
	if s.redisClient != nil {
		count, err = s.countRedis(ctx, key)
		if err != nil {
			s.logger.WithError(err).Error("Failed to execute rate limit pipeline")
			return true, s.info(0), nil
		}
	} else {
		count = s.countLocal(key)
	}

	info := s.info(count)
	return count < s.limit, info, nil
}

func (s *RateLimitService) info(count int) *models.RateLimitInfo {
	remaining := s.limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return &models.RateLimitInfo{
		Limit:     s.limit,
		Remaining: remaining,
		ResetTime: s.now().Add(s.window).Unix(),
	}
}

// countRedis records the request and returns how many requests preceded it in the window.
func (s *RateLimitService) countRedis(ctx context.Context, key string) (int, error) {
	now := s.now()
	windowStart := now.Add(-s.window)

	pipe := s.redisClient.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, s.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(countCmd.Val()), nil
}

func (s *RateLimitService) countLocal(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	windowStart := now.Add(-s.window)

	kept := s.local[key][:0]
	for _, t := range s.local[key] {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	count := len(kept)
	s.local[key] = append(kept, now)
	s.sweepLocal(windowStart)
	return count
}

// sweepLocal drops clients whose whole window has expired. Caller holds s.mu.
func (s *RateLimitService) sweepLocal(windowStart time.Time) {
	if s.now().Sub(s.lastSweep) < s.window {
		return
	}
	s.lastSweep = s.now()
	for key, times := range s.local {
		if len(times) == 0 || !times[len(times)-1].After(windowStart) {
			delete(s.local, key)
		}
	}
}

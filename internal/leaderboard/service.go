package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Entry is one leaderboard row. Rank is 1-based; 0 means the rank is unknown
// (the user sits below the cached window).
type Entry struct {
	UserID uuid.UUID `json:"user_id"`
	Points int       `json:"points"`
	Rank   int       `json:"rank"`
}

// Store aggregates points totals from the progression records.
type Store interface {
	// TopTotals lists users by campaign-wide points total, descending.
	TopTotals(ctx context.Context, limit int) ([]Entry, error)

	// TopTotalsByWorld lists users by points total within one world.
	TopTotalsByWorld(ctx context.Context, worldID uuid.UUID, limit int) ([]Entry, error)

	// UserTotal returns a single user's campaign-wide total.
	UserTotal(ctx context.Context, userID uuid.UUID) (int, error)
}

// ServiceOptions configures leaderboard caching behavior.
type ServiceOptions struct {
	TopN           int
	CacheTTL       time.Duration
	RedisKeyPrefix string
}

// Service serves points leaderboards from a Redis sorted-set cache, falling
// back to the Postgres aggregate when the cache is cold.
type Service struct {
	store    Store
	redis    *redis.Client
	logger   zerolog.Logger
	topN     int
	cacheTTL time.Duration
	prefix   string
}

// NewService constructs a leaderboard service instance.
func NewService(store Store, redisClient *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	return &Service{
		store:    store,
		redis:    redisClient,
		logger:   logger.With().Str("component", "leaderboard").Logger(),
		topN:     topN,
		cacheTTL: ttl,
		prefix:   prefix,
	}
}

// Top returns the campaign-wide top entries.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	return s.top(ctx, s.globalKey(), limit, func(ctx context.Context) ([]Entry, error) {
		return s.store.TopTotals(ctx, s.topN)
	})
}

// TopByWorld returns the top entries scoped to one world.
func (s *Service) TopByWorld(ctx context.Context, worldID uuid.UUID, limit int) ([]Entry, error) {
	return s.top(ctx, s.worldKey(worldID), limit, func(ctx context.Context) ([]Entry, error) {
		return s.store.TopTotalsByWorld(ctx, worldID, s.topN)
	})
}

// Rank resolves a single user's campaign-wide points and position. Users
// outside the cached top window get their points from Postgres and rank 0.
func (s *Service) Rank(ctx context.Context, userID uuid.UUID) (Entry, error) {
	key := s.globalKey()
	if err := s.ensureCache(ctx, key, func(ctx context.Context) ([]Entry, error) {
		return s.store.TopTotals(ctx, s.topN)
	}); err != nil {
		return Entry{}, err
	}

	member := userID.String()
	rank, err := s.redis.ZRevRank(ctx, key, member).Result()
	if err == nil {
		score, err := s.redis.ZScore(ctx, key, member).Result()
		if err != nil {
			return Entry{}, fmt.Errorf("read cached score: %w", err)
		}
		return Entry{UserID: userID, Points: int(score), Rank: int(rank) + 1}, nil
	}
	if !errors.Is(err, redis.Nil) {
		return Entry{}, fmt.Errorf("read cached rank: %w", err)
	}

	points, err := s.store.UserTotal(ctx, userID)
	if err != nil {
		return Entry{}, fmt.Errorf("load user total: %w", err)
	}
	return Entry{UserID: userID, Points: points}, nil
}

// Refresh rebuilds the global cache unconditionally. Used by the background
// refresher so readers rarely hit a cold cache.
func (s *Service) Refresh(ctx context.Context) error {
	entries, err := s.store.TopTotals(ctx, s.topN)
	if err != nil {
		return fmt.Errorf("load leaderboard totals: %w", err)
	}
	return s.fillCache(ctx, s.globalKey(), entries)
}

func (s *Service) top(ctx context.Context, key string, limit int, load func(context.Context) ([]Entry, error)) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	if err := s.ensureCache(ctx, key, load); err != nil {
		return nil, err
	}

	results, err := s.redis.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		id, err := uuid.Parse(z.Member.(string))
		if err != nil {
			s.logger.Warn().Str("member", z.Member.(string)).Msg("skipping malformed leaderboard member")
			continue
		}
		entries = append(entries, Entry{UserID: id, Points: int(z.Score), Rank: i + 1})
	}
	return entries, nil
}

func (s *Service) ensureCache(ctx context.Context, key string, load func(context.Context) ([]Entry, error)) error {
	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("probe leaderboard cache: %w", err)
	}
	if exists > 0 {
		return nil
	}

	entries, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load leaderboard totals: %w", err)
	}
	return s.fillCache(ctx, key, entries)
}

func (s *Service) fillCache(ctx context.Context, key string, entries []Entry) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, key)
	for _, e := range entries {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(e.Points), Member: e.UserID.String()})
	}
	pipe.Expire(ctx, key, s.cacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fill leaderboard cache: %w", err)
	}
	return nil
}

func (s *Service) globalKey() string {
	return s.prefix + ":global"
}

func (s *Service) worldKey(worldID uuid.UUID) string {
	return fmt.Sprintf("%s:world:%s", s.prefix, worldID)
}

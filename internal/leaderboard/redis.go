package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/procasteam/procas/internal/types"
)

// RedisRanker keeps the ranking in a Redis sorted set with a companion hash
// of display names. Scores are negated points so that ascending order, which
// Redis breaks by member, matches progress.Outranks.
type RedisRanker struct {
	client   *redis.Client
	scoreKey string
	nameKey  string
}

// NewRedisRanker returns a ranker storing its data under keyPrefix.
func NewRedisRanker(client *redis.Client, keyPrefix string) *RedisRanker {
	return &RedisRanker{
		client:   client,
		scoreKey: keyPrefix + ":points",
		nameKey:  keyPrefix + ":names",
	}
}

// Update rewrites the sorted set and name hash in one MULTI/EXEC.
func (r *RedisRanker) Update(ctx context.Context, users []types.User) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.scoreKey, r.nameKey)
	if len(users) > 0 {
		members := make([]redis.Z, len(users))
		names := make(map[string]any, len(users))
		for i, u := range users {
			members[i] = redis.Z{Score: -float64(u.Points), Member: u.ID}
			names[u.ID] = u.Name
		}
		pipe.ZAdd(ctx, r.scoreKey, members...)
		pipe.HSet(ctx, r.nameKey, names)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}
	return nil
}

// Top returns the highest-ranked entries.
func (r *RedisRanker) Top(ctx context.Context, limit int) ([]Entry, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}
	results, err := r.client.ZRangeWithScores(ctx, r.scoreKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	if len(results) == 0 {
		return []Entry{}, nil
	}

	ids := make([]string, len(results))
	for i, z := range results {
		ids[i], _ = z.Member.(string)
	}
	names, err := r.client.HMGet(ctx, r.nameKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard names: %w", err)
	}

	return toEntries(results, names), nil
}

func toEntries(results []redis.Z, names []any) []Entry {
	entries := make([]Entry, len(results))
	for i, z := range results {
		id, _ := z.Member.(string)
		entries[i] = Entry{
			Rank:   i + 1,
			UserID: id,
			Points: -int(z.Score),
		}
		if i < len(names) {
			entries[i].Name, _ = names[i].(string)
		}
	}
	return entries
}

// Rank returns the 1-based position of userID, or 0 if it is not ranked.
func (r *RedisRanker) Rank(ctx context.Context, userID string) (int, error) {
	rank, err := r.client.ZRank(ctx, r.scoreKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read rank: %w", err)
	}
	return int(rank) + 1, nil
}

// Close releases the Redis client.
func (r *RedisRanker) Close() error {
	return r.client.Close()
}

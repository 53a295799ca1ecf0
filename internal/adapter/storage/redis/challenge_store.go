package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"escrow-trade-service/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// ChallengeStore implements ports.ChallengeStore using a Redis hash per
// trade. The key TTL is the hard expiry; the expires_at field carries the
// exact cutoff for error reporting.
type ChallengeStore struct {
	client *goredis.Client
	prefix string
}

// NewChallengeStore creates a new Redis-backed release challenge store.
func NewChallengeStore(client *goredis.Client) *ChallengeStore {
	return &ChallengeStore{
		client: client,
		prefix: "release:",
	}
}

// Put stores a challenge, replacing any live one for the same trade.
func (s *ChallengeStore) Put(ctx context.Context, reference string, challenge *domain.ReleaseChallenge, ttl time.Duration) error {
	key := s.prefix + reference

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"code_hash", challenge.CodeHash,
		"expires_at", challenge.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"attempts", challenge.Attempts,
	)
	pipe.Expire(ctx, key, ttl+time.Second) // +1s safety margin
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis challenge put: %w", err)
	}
	return nil
}

// Get retrieves the live challenge for a trade.
// Returns nil, nil if none exists.
func (s *ChallengeStore) Get(ctx context.Context, reference string) (*domain.ReleaseChallenge, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+reference).Result()
	if err != nil {
		return nil, fmt.Errorf("redis challenge get: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("redis challenge expires_at: %w", err)
	}
	attempts, err := strconv.ParseInt(fields["attempts"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis challenge attempts: %w", err)
	}

	return &domain.ReleaseChallenge{
		CodeHash:  fields["code_hash"],
		ExpiresAt: expiresAt,
		Attempts:  attempts,
	}, nil
}

// FailAttempt atomically decrements the remaining attempts and returns the
// new count.
func (s *ChallengeStore) FailAttempt(ctx context.Context, reference string) (int64, error) {
	remaining, err := s.client.HIncrBy(ctx, s.prefix+reference, "attempts", -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis challenge fail attempt: %w", err)
	}
	return remaining, nil
}

// Delete removes the challenge for a trade.
func (s *ChallengeStore) Delete(ctx context.Context, reference string) error {
	if err := s.client.Del(ctx, s.prefix+reference).Err(); err != nil {
		return fmt.Errorf("redis challenge delete: %w", err)
	}
	return nil
}

package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/logimax/logimax-api/internal/logger"
)

const revokedKeyPrefix = "revoked:"

// TokenRevocationRepository is a Redis-backed denylist of token ids. Entries
// live only as long as the token they revoke, so the list stays bounded.
type TokenRevocationRepository struct {
	rdb *redis.Client
}

func NewTokenRevocationRepository(rdb *redis.Client) *TokenRevocationRepository {
	return &TokenRevocationRepository{rdb: rdb}
}

// Revoke marks a token id as revoked for the remainder of its lifetime.
// Tokens that have already expired need no entry.
func (r *TokenRevocationRepository) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		logger.Log.Errorw("token revocation failed", "jti", jti, "error", err)
		return err
	}
	return nil
}

// IsRevoked reports whether a token id is on the denylist.
func (r *TokenRevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		logger.Log.Errorw("token revocation check failed", "jti", jti, "error", err)
		return false, err
	}
	return n > 0, nil
}

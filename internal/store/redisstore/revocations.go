// Package redisstore provides a Redis-backed revocation list so multiple
// service instances can share logout state.
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"neurocare.org/internal/auth"
)

const revokedPrefix = "revoked:"

// RevocationList implements auth.RevocationList on Redis. Each entry carries
// a TTL equal to the session lifetime, so revoked tokens fall out of the set
// once they would have expired anyway.
type RevocationList struct {
	client *redis.Client
	ttl    time.Duration
}

var _ auth.RevocationList = (*RevocationList)(nil)

// New constructs a revocation list. ttl should match the session token TTL;
// a zero ttl keeps entries forever.
func New(client *redis.Client, ttl time.Duration) *RevocationList {
	return &RevocationList{client: client, ttl: ttl}
}

func (l *RevocationList) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return l.client.Set(ctx, revokedPrefix+token, "1", l.ttl).Err()
}

func (l *RevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Exists(ctx, revokedPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

package checkout

import (
	"context"
	"errors"
	"time"

	pkgredis "github.com/angelmondragon/omni-backend/pkg/redis"
)

// NonceStore records which checkout session consumed a state nonce.
type NonceStore interface {
	// Claim binds nonce to sessionID. It reports false when the nonce was
	// already bound to a different session.
	Claim(ctx context.Context, nonce, sessionID string, ttl time.Duration) (bool, error)
}

type nonceKV interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	CheckoutNonceKey(nonce string) string
}

// RedisNonceStore implements NonceStore with SETNX.
type RedisNonceStore struct {
	kv nonceKV
}

// NewRedisNonceStore returns nil when Redis is not configured.
func NewRedisNonceStore(client *pkgredis.Client) NonceStore {
	if client == nil {
		return nil
	}
	return &RedisNonceStore{kv: client}
}

func (s *RedisNonceStore) Claim(ctx context.Context, nonce, sessionID string, ttl time.Duration) (bool, error) {
	key := s.kv.CheckoutNonceKey(nonce)
	set, err := s.kv.SetNX(ctx, key, sessionID, ttl)
	if err != nil {
		return false, err
	}
	if set {
		return true, nil
	}
	owner, err := s.kv.Get(ctx, key)
	if errors.Is(err, pkgredis.ErrNil) {
		// Expired between the two calls; try once more.
		return s.kv.SetNX(ctx, key, sessionID, ttl)
	}
	if err != nil {
		return false, err
	}
	return owner == sessionID, nil
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carflex-purchase-api/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// VerificationCache keeps recently verified transactions in Redis so retried
// client requests do not hit the App Store again. Only authority-verified
// payloads are cached; the cache is a read-through optimization, the
// entitlement layer stays the source of idempotency.
type VerificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVerificationCache creates a cache with the given entry lifetime.
func NewVerificationCache(client *redis.Client, ttl time.Duration) *VerificationCache {
	return &VerificationCache{client: client, ttl: ttl}
}

func verificationCacheKey(transactionID string) string {
	return fmt.Sprintf("verified_transaction:%s", transactionID)
}

// Get returns a cached verified transaction, if present.
func (c *VerificationCache) Get(ctx context.Context, transactionID string) (*VerifiedTransaction, bool) {
	data, err := c.client.Get(ctx, verificationCacheKey(transactionID)).Result()
	if err != nil {
		if err != redis.Nil {
			logging.Warnf("Verification cache read failed - transaction_id: %s, error: %v", transactionID, err)
		}
		return nil, false
	}

	var tx VerifiedTransaction
	if err := json.Unmarshal([]byte(data), &tx); err != nil {
		logging.Warnf("Verification cache entry corrupt - transaction_id: %s, error: %v", transactionID, err)
		return nil, false
	}
	return &tx, true
}

// Set stores a verified transaction. Cache failures are logged and ignored;
// verification falls back to the App Store on the next request.
func (c *VerificationCache) Set(ctx context.Context, transactionID string, tx *VerifiedTransaction) {
	if !tx.VerifiedByApple {
		return
	}
	data, err := json.Marshal(tx)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, verificationCacheKey(transactionID), data, c.ttl).Err(); err != nil {
		logging.Warnf("Verification cache write failed - transaction_id: %s, error: %v", transactionID, err)
	}
}

package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"veristamp/pkg/domain"
)

// CachedGateway is a read-through cache over Lookup. Only positive records
// are cached: an absent hash may be registered at any moment, and a stale
// "not anchored" answer would misreport a genuine document. Cache failures
// are logged and ignored; the backend answer always wins.
type CachedGateway struct {
	inner  Gateway
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

type cachedRecord struct {
	TxID        string    `json:"tx_id"`
	BlockHeight int64     `json:"block_height"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewCached wraps a gateway with a redis lookup cache.
func NewCached(inner Gateway, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedGateway {
	return &CachedGateway{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Register passes straight through and primes the cache with the receipt.
func (g *CachedGateway) Register(ctx context.Context, hash domain.DocumentHash) (Receipt, error) {
	receipt, err := g.inner.Register(ctx, hash)
	if err != nil {
		return Receipt{}, err
	}
	g.put(ctx, hash, cachedRecord{
		TxID:        receipt.TxID,
		BlockHeight: receipt.BlockHeight,
		Timestamp:   time.Now().UTC(),
	})
	return receipt, nil
}

func (g *CachedGateway) Lookup(ctx context.Context, hash domain.DocumentHash) (Record, error) {
	if raw, err := g.client.Get(ctx, cacheKey(hash)).Result(); err == nil {
		var c cachedRecord
		if jsonErr := json.Unmarshal([]byte(raw), &c); jsonErr == nil {
			return Record{
				Exists:      true,
				TxID:        c.TxID,
				BlockHeight: c.BlockHeight,
				Timestamp:   c.Timestamp,
			}, nil
		}
	} else if err != redis.Nil {
		g.logger.WarnContext(ctx, "ledger cache read failed", "error", err)
	}

	record, err := g.inner.Lookup(ctx, hash)
	if err != nil {
		return Record{}, err
	}
	if record.Exists {
		g.put(ctx, hash, cachedRecord{
			TxID:        record.TxID,
			BlockHeight: record.BlockHeight,
			Timestamp:   record.Timestamp,
		})
	}
	return record, nil
}

func (g *CachedGateway) put(ctx context.Context, hash domain.DocumentHash, c cachedRecord) {
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := g.client.Set(ctx, cacheKey(hash), raw, g.ttl).Err(); err != nil {
		g.logger.WarnContext(ctx, "ledger cache write failed", "error", err)
	}
}

func cacheKey(hash domain.DocumentHash) string {
	return "ledger:lookup:" + hash.String()
}

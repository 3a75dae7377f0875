package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"disc-assess/internal/domain"
)

// MemoryAnalysisCache es un AnalysisCache en memoria para tests y la CLI.
type MemoryAnalysisCache struct {
	mu    sync.RWMutex
	items map[string]domain.AnalysisRecord
}

func NewMemoryAnalysisCache() *MemoryAnalysisCache {
	return &MemoryAnalysisCache{items: make(map[string]domain.AnalysisRecord)}
}

func (c *MemoryAnalysisCache) Get(_ context.Context, resultID string) (domain.AnalysisRecord, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.items[resultID]
	return rec, ok, nil
}

func (c *MemoryAnalysisCache) Put(_ context.Context, resultID string, rec domain.AnalysisRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[resultID] = rec
	return nil
}

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisAnalysisCache guarda el JSON del registro comprimido con zstd.
type RedisAnalysisCache struct {
	client redisKV
	prefix string
	ttl    time.Duration
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

func NewRedisAnalysisCache(client *redis.Client, ttl time.Duration) (*RedisAnalysisCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newRedisAnalysisCache(client, ttl)
}

func newRedisAnalysisCache(client redisKV, ttl time.Duration) (*RedisAnalysisCache, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &RedisAnalysisCache{
		client: client,
		prefix: "analysis:",
		ttl:    ttl,
		enc:    enc,
		dec:    dec,
	}, nil
}

func (c *RedisAnalysisCache) key(resultID string) string {
	return c.prefix + strings.TrimSpace(resultID)
}

func (c *RedisAnalysisCache) Get(ctx context.Context, resultID string) (domain.AnalysisRecord, bool, error) {
	raw, err := c.client.Get(ctx, c.key(resultID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AnalysisRecord{}, false, nil
	}
	if err != nil {
		return domain.AnalysisRecord{}, false, err
	}
	plain, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		return domain.AnalysisRecord{}, false, fmt.Errorf("decompress analysis: %w", err)
	}
	var rec domain.AnalysisRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return domain.AnalysisRecord{}, false, fmt.Errorf("decode analysis: %w", err)
	}
	return rec, true, nil
}

func (c *RedisAnalysisCache) Put(ctx context.Context, resultID string, rec domain.AnalysisRecord) error {
	plain, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(resultID), c.enc.EncodeAll(plain, nil), c.ttl).Err()
}

// TieredAnalysisCache consulta Redis primero; Postgres es la fuente autoritativa.
type TieredAnalysisCache struct {
	fast   AnalysisCache
	store  AnalysisCache
	logger *zap.Logger
}

// NewTieredAnalysisCache acepta fast nil (sin Redis configurado).
func NewTieredAnalysisCache(fast, store AnalysisCache, logger *zap.Logger) *TieredAnalysisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredAnalysisCache{fast: fast, store: store, logger: logger}
}

func (c *TieredAnalysisCache) Get(ctx context.Context, resultID string) (domain.AnalysisRecord, bool, error) {
	if c.fast != nil {
		rec, ok, err := c.fast.Get(ctx, resultID)
		if err != nil {
			c.logger.Warn("fast analysis cache get failed", zap.String("result_id", resultID), zap.Error(err))
		} else if ok {
			return rec, true, nil
		}
	}

	rec, ok, err := c.store.Get(ctx, resultID)
	if err != nil || !ok {
		return rec, ok, err
	}
	if c.fast != nil {
		if err := c.fast.Put(ctx, resultID, rec); err != nil {
			c.logger.Warn("fast analysis cache backfill failed", zap.String("result_id", resultID), zap.Error(err))
		}
	}
	return rec, true, nil
}

func (c *TieredAnalysisCache) Put(ctx context.Context, resultID string, rec domain.AnalysisRecord) error {
	if err := c.store.Put(ctx, resultID, rec); err != nil {
		return err
	}
	if c.fast != nil {
		if err := c.fast.Put(ctx, resultID, rec); err != nil {
			c.logger.Warn("fast analysis cache put failed", zap.String("result_id", resultID), zap.Error(err))
		}
	}
	return nil
}

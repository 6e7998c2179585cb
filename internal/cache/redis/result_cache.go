// Package redis provides the Redis-backed generation result cache.
// Results are stored under an exact key derived from the request
// identity, so only byte-identical requests hit.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/normalize"
	"github.com/davidbz/howl/internal/observability"
)

const keyPrefix = "howl:result:"

// envelope is the stored wire form of a cached result. The payload is
// kept as raw JSON so the typed payload can be rebuilt on read.
type envelope struct {
	Feature  domain.Feature  `json:"feature"`
	Payload  json.RawMessage `json:"payload"`
	Provider string          `json:"provider"`
	Usage    domain.Usage    `json:"usage"`
}

// ResultCache implements domain.ResultCache on top of Redis.
type ResultCache struct {
	client *redis.Client
}

// NewResultCache creates a result cache backed by the given Redis client.
func NewResultCache(client *redis.Client) *ResultCache {
	return &ResultCache{client: client}
}

// Get looks up a previously stored result for an identical request.
// Returns domain.ErrCacheMiss when nothing is stored.
func (c *ResultCache) Get(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	key := cacheKey(req)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached result: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode cached result: %w", err)
	}

	payload, err := normalize.DecodePayload(env.Feature, env.Payload)
	if err != nil {
		// A stale or corrupt entry behaves like a miss.
		observability.FromContext(ctx).Warn("discarding corrupt cache entry",
			observability.String("key", key),
			observability.Error(err))
		return nil, domain.ErrCacheMiss
	}

	return &domain.GenerationResult{
		Feature:  env.Feature,
		Payload:  payload,
		Provider: env.Provider,
		Usage:    env.Usage,
		Cached:   true,
	}, nil
}

// Set stores a terminal result under the request's exact key.
func (c *ResultCache) Set(ctx context.Context, req *domain.GenerationRequest, result *domain.GenerationResult, ttl time.Duration) error {
	rawPayload, err := json.Marshal(result.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for cache: %w", err)
	}

	data, err := json.Marshal(envelope{
		Feature:  result.Feature,
		Payload:  rawPayload,
		Provider: result.Provider,
		Usage:    result.Usage,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache envelope: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(req), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cached result: %w", err)
	}

	return nil
}

// cacheKey derives the exact-match key from everything that changes the
// generated payload: feature, full input text, and the requested shape.
func cacheKey(req *domain.GenerationRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Feature))
	h.Write([]byte{0})
	h.Write([]byte(req.InputText))
	if req.Options.Shape != nil {
		fmt.Fprintf(h, "|shape:%d:%d", req.Options.Shape.NodeCount, req.Options.Shape.Depth)
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

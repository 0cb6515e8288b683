package breach

import (
	"context"
	"time"

	"go.uber.org/zap"

	"breach-lookup/logging"
	"breach-lookup/metrics"
)

// TokenTTL is how long an access token is reused before a new one is requested.
const TokenTTL = 100000 * time.Second

// Credentials identify the OAuth client.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// CacheKey is the client id and secret concatenated with no separator, so
// id "ab" + secret "c" and id "a" + secret "bc" share a key.
// TODO: add a separator once deployed caches can be flushed; changing it
// today would orphan every cached token.
func (c Credentials) CacheKey() string {
	return c.ClientID + c.ClientSecret
}

// TokenFetcher performs the token exchange. *Client implements it.
type TokenFetcher interface {
	FetchToken(ctx context.Context, creds Credentials) (string, error)
}

// TokenCache hands out bearer tokens, fetching a new one only when the store
// has no unexpired entry for the credentials. Concurrent misses for the same
// key are not de-duplicated; each one fetches.
type TokenCache struct {
	fetcher TokenFetcher
	store   TokenStore
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewTokenCache(fetcher TokenFetcher, store TokenStore, logger *zap.Logger, m *metrics.Metrics) *TokenCache {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &TokenCache{
		fetcher: fetcher,
		store:   store,
		ttl:     TokenTTL,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}

// Token returns a cached token for creds or fetches and caches a new one.
func (c *TokenCache) Token(ctx context.Context, creds Credentials) (string, error) {
	key := creds.CacheKey()

	token, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("token store read failed, fetching a new token", zap.Error(err))
	} else if ok && token != "" {
		c.metrics.ObserveToken(metrics.TokenCacheHit)
		c.logger.Debug("using cached token", zap.String("token", logging.MaskSecret(token)))
		return token, nil
	}

	token, err = c.fetcher.FetchToken(ctx, creds)
	if err != nil {
		c.metrics.ObserveToken(metrics.TokenFailed)
		return "", err
	}
	c.metrics.ObserveToken(metrics.TokenFetched)

	if err := c.store.Set(ctx, key, token, c.ttl); err != nil {
		c.logger.Warn("token store write failed", zap.Error(err))
	}
	c.logger.Debug("fetched new token",
		zap.String("client_id", creds.ClientID),
		zap.String("token", logging.MaskSecret(token)),
		zap.Duration("ttl", c.ttl),
	)
	return token, nil
}

// Invalidate drops the cached token for creds. It is a maintenance hook for
// operators; lookups never call it and rely on TTL expiry alone.
func (c *TokenCache) Invalidate(ctx context.Context, creds Credentials) error {
	return c.store.Invalidate(ctx, creds.CacheKey())
}

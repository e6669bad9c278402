package cache

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/logging"
)

// Tier names reported by Layered.Lookup
const (
	TierLocal  = "local"
	TierRemote = "remote"
)

// Layered combines the local and remote tiers. Either tier may be nil.
type Layered struct {
	local  *LocalTier
	remote *RemoteTier
	logger *zap.Logger
}

// NewLayered creates a two-tier cache
func NewLayered(local *LocalTier, remote *RemoteTier, logger *zap.Logger) *Layered {
	return &Layered{
		local:  local,
		remote: remote,
		logger: logging.Or(logger),
	}
}

// Get checks local first, then remote
func (c *Layered) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	data, _, ok := c.Lookup(ctx, key)
	return data, ok
}

// Lookup is Get that also reports which tier answered. Remote hits are
// promoted to the local tier.
func (c *Layered) Lookup(ctx context.Context, key string) (json.RawMessage, string, bool) {
	if c == nil {
		return nil, "", false
	}
	if c.local != nil {
		if data, ok := c.local.Get(key); ok {
			return data, TierLocal, true
		}
	}
	if c.remote != nil {
		if data, ok := c.remote.Get(ctx, key); ok {
			if c.local != nil {
				if err := c.local.Set(key, data); err != nil {
					c.logger.Debug("cache: promote failed", zap.String("key", key), zap.Error(err))
				}
			}
			return data, TierRemote, true
		}
	}
	return nil, "", false
}

// Set writes data to both tiers. Failures are logged, never returned: a
// cache that cannot store behaves like a miss next time.
func (c *Layered) Set(ctx context.Context, key, language string, data any) {
	if c == nil {
		return
	}
	payload, err := encodeData(data)
	if err != nil {
		c.logger.Warn("cache: encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if c.local != nil {
		if err := c.local.Set(key, payload); err != nil {
			c.logger.Warn("cache: local write failed", zap.String("key", key), zap.Error(err))
		}
	}
	if c.remote != nil {
		if err := c.remote.Set(ctx, key, language, payload); err != nil {
			c.logger.Debug("cache: remote write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

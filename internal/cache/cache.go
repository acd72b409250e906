package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/solyse/club-flow/pkg/logger"
	"github.com/solyse/club-flow/pkg/metrics"
	"github.com/solyse/club-flow/pkg/redis"
)

// Store is the backing key/value surface the client writes through.
type Store interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Client persists per-session flow state. Every method degrades gracefully:
// a failing store never aborts the caller, reads report a miss and writes
// are dropped with a log entry.
type Client struct {
	store     Store
	envSuffix string
	logg      *logger.Logger
	flow      *metrics.FlowMetrics
}

func NewClient(store Store, envSuffix string, logg *logger.Logger, flow *metrics.FlowMetrics) (*Client, error) {
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Client{
		store:     store,
		envSuffix: envSuffix,
		logg:      logg,
		flow:      flow,
	}, nil
}

func (c *Client) physicalKey(session string, key Key) string {
	return redis.BuildKey(c.envSuffix, session, string(key))
}

// Set marshals value as JSON and stores it under the session slot.
func (c *Client) Set(ctx context.Context, session string, key Key, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.logg.Error(ctx, fmt.Sprintf("cache: marshal %s", key), err)
		return
	}
	if err := c.store.Set(ctx, c.physicalKey(session, key), string(payload)); err != nil {
		c.logg.Error(ctx, fmt.Sprintf("cache: set %s", key), err)
	}
}

// Get unmarshals the stored slot into dest and reports whether a usable
// value was present. Corrupt entries count as a miss.
func (c *Client) Get(ctx context.Context, session string, key Key, dest any) bool {
	raw, ok, err := c.store.Get(ctx, c.physicalKey(session, key))
	if err != nil {
		c.logg.Error(ctx, fmt.Sprintf("cache: get %s", key), err)
		c.flow.IncCacheMiss(string(key))
		return false
	}
	if !ok {
		c.flow.IncCacheMiss(string(key))
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logg.Error(ctx, fmt.Sprintf("cache: decode %s", key), err)
		c.flow.IncCacheMiss(string(key))
		return false
	}
	c.flow.IncCacheHit(string(key))
	return true
}

// Has reports slot presence without decoding it.
func (c *Client) Has(ctx context.Context, session string, key Key) bool {
	ok, err := c.store.Exists(ctx, c.physicalKey(session, key))
	if err != nil {
		c.logg.Error(ctx, fmt.Sprintf("cache: exists %s", key), err)
		return false
	}
	return ok
}

// Remove deletes the named slots for the session.
func (c *Client) Remove(ctx context.Context, session string, keys ...Key) {
	if len(keys) == 0 {
		return
	}
	physical := make([]string, 0, len(keys))
	for _, key := range keys {
		physical = append(physical, c.physicalKey(session, key))
	}
	if err := c.store.Del(ctx, physical...); err != nil {
		c.logg.Error(ctx, "cache: remove", err)
	}
}

// ResetFirstLoad clears the slots that must not leak into a fresh flow.
func (c *Client) ResetFirstLoad(ctx context.Context, session string) {
	c.Remove(ctx, session, FirstLoadReset...)
}

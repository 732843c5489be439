// Package counter keeps per-operation payment outcome counters in Redis so
// every instance behind the load balancer adds to the same totals.
package counter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const outcomesKey = "payments:counters:outcomes"

// Counter increments outcome counters in a Redis hash, one field per
// "<operation>:<outcome>" pair.
type Counter struct {
	client *redis.Client
	key    string
}

// New creates a counter on client. A nil client yields a no-op counter.
func New(client *redis.Client) *Counter {
	return &Counter{client: client, key: outcomesKey}
}

func field(op, outcome string) string { return op + ":" + outcome }

// Add increments the counter for op and outcome.
func (c *Counter) Add(ctx context.Context, op, outcome string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.HIncrBy(ctx, c.key, field(op, outcome), 1).Err()
}

// Snapshot returns the current totals without resetting them.
func (c *Counter) Snapshot(ctx context.Context) (map[string]int64, error) {
	if c == nil || c.client == nil {
		return map[string]int64{}, nil
	}
	data, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	return parseCounts(data)
}

// Drain returns the totals and resets them. The hash is renamed to a
// temporary key first so increments racing with the drain are kept for the
// next call.
func (c *Counter) Drain(ctx context.Context) (map[string]int64, error) {
	if c == nil || c.client == nil {
		return map[string]int64{}, nil
	}

	tmpKey := fmt.Sprintf("%s:tmp:%d", c.key, time.Now().UnixNano())
	if err := c.client.Rename(ctx, c.key, tmpKey).Err(); err != nil {
		// Nothing counted yet.
		if isNoSuchKey(err) {
			return map[string]int64{}, nil
		}
		return nil, err
	}
	defer c.client.Del(ctx, tmpKey)

	data, err := c.client.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}
	return parseCounts(data)
}

func parseCounts(data map[string]string) (map[string]int64, error) {
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

func isNoSuchKey(err error) bool {
	if errors.Is(err, redis.Nil) {
		return true
	}
	return err != nil && err.Error() == "ERR no such key"
}

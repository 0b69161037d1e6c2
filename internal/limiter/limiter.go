// Package limiter guards flaky external tools: a per-tool in-process
// inflight cap plus a Redis-backed cooldown that doubles on consecutive
// failures. Shared across instances through Redis, so one soffice
// meltdown cools every node down.
package limiter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Adaptive struct {
	rdb         *redis.Client
	maxInflight int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	mu          sync.Mutex
	sem         map[string]chan struct{}
}

type Options struct {
	RedisURL    string
	MaxInflight int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func New(opts Options) (*Adaptive, error) {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 2
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Minute
	}
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(ro)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Adaptive{
		rdb:         c,
		maxInflight: opts.MaxInflight,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		sem:         map[string]chan struct{}{},
	}, nil
}

func (a *Adaptive) key(tool string) string {
	return fmt.Sprintf("cooldown:%s", strings.ToLower(tool))
}

// IsOpen reports whether the tool is in cooldown.
func (a *Adaptive) IsOpen(ctx context.Context, tool string) bool {
	ts, err := a.rdb.Get(ctx, a.key(tool)).Int64()
	if err != nil {
		return false
	}
	return time.Now().Unix() < ts
}

// Trip extends the cooldown, doubling per consecutive failure up to
// maxBackoff.
func (a *Adaptive) Trip(ctx context.Context, tool string) {
	k := a.key(tool)
	attempts, _ := a.rdb.Incr(ctx, k+":attempts").Result()
	if attempts < 1 {
		attempts = 1
	}
	d := a.baseBackoff * (1 << (attempts - 1))
	if d > a.maxBackoff {
		d = a.maxBackoff
	}
	until := time.Now().Add(d).Unix()
	_ = a.rdb.Set(ctx, k, until, d).Err()
}

// Reset clears the cooldown after a success.
func (a *Adaptive) Reset(ctx context.Context, tool string) {
	k := a.key(tool)
	_ = a.rdb.Del(ctx, k, k+":attempts").Err()
}

// Allow tries to reserve a local in-process slot for the tool. Returns
// a release function and true if allowed; otherwise nil-op, false.
func (a *Adaptive) Allow(tool string) (func(), bool) {
	key := strings.ToLower(tool)
	a.mu.Lock()
	ch, ok := a.sem[key]
	if !ok {
		ch = make(chan struct{}, a.maxInflight)
		a.sem[key] = ch
	}
	a.mu.Unlock()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return func() {}, false
	}
}

func (a *Adaptive) CloseClient() error { return a.rdb.Close() }

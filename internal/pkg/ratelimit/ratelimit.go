package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Counter is a windowed key counter. Backing it with a shared store keeps
// the budget correct across instances; the in-memory implementation is
// only safe for a single-instance deployment.
type Counter interface {
	// Incr bumps the key's counter and returns the post-increment
	// count. The first hit in a window starts the window timer.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter enforces a fixed-window request budget per key.
type Limiter struct {
	counter Counter
	max     int64
	window  time.Duration
	prefix  string
}

func New(counter Counter, max int64, window time.Duration, prefix string) *Limiter {
	return &Limiter{counter: counter, max: max, window: window, prefix: prefix}
}

// Allow reports whether the key still has budget in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.counter.Incr(ctx, l.prefix+key, l.window)
	if err != nil {
		return false, err
	}
	return n <= l.max, nil
}

// Middleware answers 429 once the calling IP exceeds the window budget.
// Counter failures fail open: a broken cache must not take the webhook
// endpoint down with it.
func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := l.Allow(c.UserContext(), c.IP())
		if err != nil {
			log.Warnf("rate limiter unavailable, allowing request: %v", err)
			return c.Next()
		}
		if !ok {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		}
		return c.Next()
	}
}

type memoryBucket struct {
	count   int64
	resetAt time.Time
}

// memoryCounter is the single-instance default.
type memoryCounter struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
	now     func() time.Time
}

func NewMemoryCounter() Counter {
	return &memoryCounter{buckets: make(map[string]*memoryBucket), now: time.Now}
}

func (m *memoryCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &memoryBucket{resetAt: now.Add(window)}
		m.buckets[key] = b
	}
	b.count++
	return b.count, nil
}

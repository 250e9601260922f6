package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell-app/InkWell/app/models"
	"github.com/inkwell-app/InkWell/internal/pkg/tier"
	"gorm.io/gorm"
)

const (
	ReasonLimitReached = "limit reached"
)

const (
	maxAttempts  = 3
	retryBackoff = 50 * time.Millisecond
)

// Result is the outcome of a ledger operation, shaped so callers can
// render it directly.
type Result struct {
	Allowed   bool   `json:"allowed"`
	Limit     int64  `json:"limit"`
	Current   int64  `json:"current"`
	Remaining int64  `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
	Reason    string `json:"reason,omitempty"`
}

// Ledger meters per-user, per-period action counters on top of a Store.
// All mutation goes through the store's atomic operations; the ledger
// adds period bookkeeping and bounded retries for transient store
// failures.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Reserve atomically checks and consumes amount against the current
// period's counter, creating the period row first when needed with limits
// snapshotted from the caller-supplied effective tier.
func (l *Ledger) Reserve(ctx context.Context, userID uint, action tier.Action, amount int64, t tier.Tier, limit tier.Limit, now time.Time) (Result, error) {
	if amount <= 0 {
		return Result{}, fmt.Errorf("reserve amount must be positive, got %d", amount)
	}
	key := PeriodKey(now)
	if err := l.ensure(ctx, userID, key, action, t, limit); err != nil {
		return Result{}, err
	}

	var applied bool
	err := l.withRetry(ctx, func() error {
		var err error
		applied, err = l.store.TryReserve(ctx, userID, key, string(action), amount)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	rec, err := l.record(ctx, userID, key, action)
	if err != nil {
		return Result{}, err
	}
	res := resultFromRecord(rec)
	res.Allowed = applied
	if !applied {
		res.Reason = ReasonLimitReached
	}
	return res, nil
}

// Increment records usage unconditionally, for side effects that already
// happened and must be accounted even past the limit.
func (l *Ledger) Increment(ctx context.Context, userID uint, action tier.Action, amount int64, t tier.Tier, limit tier.Limit, now time.Time) (Result, error) {
	if amount <= 0 {
		return Result{}, fmt.Errorf("increment amount must be positive, got %d", amount)
	}
	return l.add(ctx, userID, action, amount, t, limit, now)
}

// Decrement releases previously-counted usage, e.g. when stored content
// is deleted. The counter is clamped at zero.
func (l *Ledger) Decrement(ctx context.Context, userID uint, action tier.Action, amount int64, t tier.Tier, limit tier.Limit, now time.Time) (Result, error) {
	if amount <= 0 {
		return Result{}, fmt.Errorf("decrement amount must be positive, got %d", amount)
	}
	return l.add(ctx, userID, action, -amount, t, limit, now)
}

// Peek returns the current period's counter without consuming anything.
// A nil record means nothing has been metered this period.
func (l *Ledger) Peek(ctx context.Context, userID uint, action tier.Action, now time.Time) (*models.UsageRecord, error) {
	rec, err := l.store.Get(ctx, userID, PeriodKey(now), string(action))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// EnsurePeriod creates the current period's row for an action if absent,
// snapshotting the given tier's limit. Used by the webhook reconciler
// after tier changes; existing rows keep their creation-time snapshot.
func (l *Ledger) EnsurePeriod(ctx context.Context, userID uint, action tier.Action, t tier.Tier, limit tier.Limit, now time.Time) error {
	return l.ensure(ctx, userID, PeriodKey(now), action, t, limit)
}

func (l *Ledger) add(ctx context.Context, userID uint, action tier.Action, delta int64, t tier.Tier, limit tier.Limit, now time.Time) (Result, error) {
	key := PeriodKey(now)
	if err := l.ensure(ctx, userID, key, action, t, limit); err != nil {
		return Result{}, err
	}
	err := l.withRetry(ctx, func() error {
		return l.store.Add(ctx, userID, key, string(action), delta)
	})
	if err != nil {
		return Result{}, err
	}
	rec, err := l.record(ctx, userID, key, action)
	if err != nil {
		return Result{}, err
	}
	res := resultFromRecord(rec)
	res.Allowed = true
	return res, nil
}

func (l *Ledger) ensure(ctx context.Context, userID uint, key string, action tier.Action, t tier.Tier, limit tier.Limit) error {
	rec := &models.UsageRecord{
		UserID:            userID,
		PeriodKey:         key,
		Action:            string(action),
		LimitSnapshot:     limit.Value,
		UnlimitedSnapshot: limit.Unlimited,
		TierSnapshot:      string(t),
	}
	return l.withRetry(ctx, func() error {
		return l.store.EnsurePeriodRecord(ctx, rec)
	})
}

func (l *Ledger) record(ctx context.Context, userID uint, key string, action tier.Action) (*models.UsageRecord, error) {
	var rec *models.UsageRecord
	err := l.withRetry(ctx, func() error {
		var err error
		rec, err = l.store.Get(ctx, userID, key, string(action))
		return err
	})
	return rec, err
}

// withRetry runs op up to maxAttempts times with a growing pause between
// attempts. Transient store errors (lost conflicts, connection hiccups)
// get absorbed here; the last error surfaces to the caller.
func (l *Ledger) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, context.Canceled) {
			return err
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
	}
	return err
}

func resultFromRecord(rec *models.UsageRecord) Result {
	return Result{
		Limit:     rec.LimitSnapshot,
		Current:   rec.Used,
		Remaining: rec.Remaining(),
		Unlimited: rec.UnlimitedSnapshot,
	}
}

package usage

import (
	"context"
	"time"

	"github.com/inkwell-app/InkWell/app/models"
)

// PeriodKey returns the calendar-month bucket a point in time falls into.
// Keys are UTC so every instance agrees on the rollover boundary.
func PeriodKey(now time.Time) string {
	return now.UTC().Format("2006-01")
}

// Store is the persistence contract for usage counters. TryReserve and
// Add must be atomic against the backing store: a single conditional
// write, never a read-check-write sequence visible to the caller.
type Store interface {
	// EnsurePeriodRecord creates the row if absent and leaves an
	// existing row untouched, so the creation-time limit snapshot is
	// never overwritten mid-period.
	EnsurePeriodRecord(ctx context.Context, rec *models.UsageRecord) error

	// TryReserve adds amount to the counter only if the post-increment
	// value stays within the snapshotted limit (or the snapshot is
	// unlimited). Reports whether the increment was applied.
	TryReserve(ctx context.Context, userID uint, periodKey string, action string, amount int64) (bool, error)

	// Add applies an unconditional delta. Negative deltas clamp at
	// zero; the counter never goes negative.
	Add(ctx context.Context, userID uint, periodKey string, action string, amount int64) error

	// Get returns the row, or gorm.ErrRecordNotFound when none exists
	// for the period yet.
	Get(ctx context.Context, userID uint, periodKey string, action string) (*models.UsageRecord, error)
}

package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/inkwell-app/InkWell/internal/pkg/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func TestPeriodKey(t *testing.T) {
	assert.Equal(t, "2026-08", PeriodKey(testNow))
	// The key is UTC: late on the 31st in a western timezone is already
	// next month in UTC.
	loc := time.FixedZone("UTC-8", -8*3600)
	assert.Equal(t, "2026-09", PeriodKey(time.Date(2026, 8, 31, 22, 0, 0, 0, loc)))
}

func TestReserveSequentialUpToLimit(t *testing.T) {
	ledger := NewLedger(NewMemoryStore())
	ctx := context.Background()
	limit := tier.LimitOf(5)

	for i := 0; i < 5; i++ {
		res, err := ledger.Reserve(ctx, 1, tier.ActionGenerateContent, 1, tier.TierFree, limit, testNow)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "reservation %d should be allowed", i+1)
	}

	res, err := ledger.Reserve(ctx, 1, tier.ActionGenerateContent, 1, tier.TierFree, limit, testNow)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonLimitReached, res.Reason)
	assert.Equal(t, int64(5), res.Limit)
	assert.Equal(t, int64(5), res.Current)
	assert.Equal(t, int64(0), res.Remaining)
}

func TestReserveConcurrentNeverOvershoots(t *testing.T) {
	const workers = 25
	const limit = 10

	ledger := NewLedger(NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	allowed := make(chan bool, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := ledger.Reserve(ctx, 7, tier.ActionGenerateContent, 1, tier.TierFree, tier.LimitOf(limit), testNow)
			assert.NoError(t, err)
			allowed <- err == nil && res.Allowed
		}()
	}
	close(start)
	wg.Wait()
	close(allowed)

	grants := 0
	for ok := range allowed {
		if ok {
			grants++
		}
	}
	assert.Equal(t, limit, grants, "exactly limit reservations must win")

	rec, err := ledger.Peek(ctx, 7, tier.ActionGenerateContent, testNow)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(limit), rec.Used, "stored counter must equal the limit, never exceed it")
}

func TestReserveUnlimited(t *testing.T) {
	ledger := NewLedger(NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		res, err := ledger.Reserve(ctx, 1, tier.ActionAskFollowup, 1, tier.TierPro, tier.NoLimit(), testNow)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.True(t, res.Unlimited)
		assert.Equal(t, int64(-1), res.Remaining)
	}
}

func TestIncrementBypassesLimit(t *testing.T) {
	ledger := NewLedger(NewMemoryStore())
	ctx := context.Background()
	limit := tier.LimitOf(2)

	for i := 0; i < 4; i++ {
		res, err := ledger.Increment(ctx, 1, tier.ActionUseStorage, 1, tier.TierFree, limit, testNow)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	rec, err := ledger.Peek(ctx, 1, tier.ActionUseStorage, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Used, "increment records usage past the limit")
}

func TestDecrementClampsAtZero(t *testing.T) {
	ledger := NewLedger(NewMemoryStore())
	ctx := context.Background()
	limit := tier.LimitOf(100)

	_, err := ledger.Increment(ctx, 1, tier.ActionUseStorage, 10, tier.TierBasic, limit, testNow)
	require.NoError(t, err)

	res, err := ledger.Decrement(ctx, 1, tier.ActionUseStorage, 25, tier.TierBasic, limit, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Current, "counter never goes negative")
}

func TestReserveRejectsNonPositiveAmount(t *testing.T) {
	ledger := NewLedger(NewMemoryStore())
	_, err := ledger.Reserve(context.Background(), 1, tier.ActionGenerateContent, 0, tier.TierFree, tier.LimitOf(5), testNow)
	assert.Error(t, err)
	_, err = ledger.Decrement(context.Background(), 1, tier.ActionGenerateContent, -3, tier.TierFree, tier.LimitOf(5), testNow)
	assert.Error(t, err)
}

func TestPeriodRolloverStartsFreshCounters(t *testing.T) {
	ledger := NewLedger(NewMemoryStore())
	ctx := context.Background()

	// Exhaust August under the free tier.
	for i := 0; i < 5; i++ {
		res, err := ledger.Reserve(ctx, 1, tier.ActionGenerateContent, 1, tier.TierFree, tier.LimitOf(5), testNow)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := ledger.Reserve(ctx, 1, tier.ActionGenerateContent, 1, tier.TierFree, tier.LimitOf(5), testNow)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// September starts at zero and snapshots the then-current tier.
	september := testNow.AddDate(0, 1, 0)
	res, err = ledger.Reserve(ctx, 1, tier.ActionGenerateContent, 1, tier.TierBasic, tier.LimitOf(200), september)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Current)
	assert.Equal(t, int64(200), res.Limit)

	// The August row is untouched.
	augRec, err := ledger.Peek(ctx, 1, tier.ActionGenerateContent, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(5), augRec.Used)
	assert.Equal(t, int64(5), augRec.LimitSnapshot)
	assert.Equal(t, string(tier.TierFree), augRec.TierSnapshot)
}

func TestSnapshotIsNotRetroactivelyChanged(t *testing.T) {
	ledger := NewLedger(NewMemoryStore())
	ctx := context.Background()

	// First action this month snapshots the free limit.
	_, err := ledger.Reserve(ctx, 1, tier.ActionGenerateContent, 1, tier.TierFree, tier.LimitOf(5), testNow)
	require.NoError(t, err)

	// A mid-month upgrade does not rewrite the existing snapshot.
	err = ledger.EnsurePeriod(ctx, 1, tier.ActionGenerateContent, tier.TierPro, tier.NoLimit(), testNow)
	require.NoError(t, err)

	rec, err := ledger.Peek(ctx, 1, tier.ActionGenerateContent, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.LimitSnapshot)
	assert.False(t, rec.UnlimitedSnapshot)
	assert.Equal(t, string(tier.TierFree), rec.TierSnapshot)
}

func TestPeekWithoutRecord(t *testing.T) {
	ledger := NewLedger(NewMemoryStore())
	rec, err := ledger.Peek(context.Background(), 99, tier.ActionGenerateContent, testNow)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

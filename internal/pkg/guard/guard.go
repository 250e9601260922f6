package guard

import (
	"context"
	"time"

	"github.com/inkwell-app/InkWell/internal/pkg/billing"
	"github.com/inkwell-app/InkWell/internal/pkg/entitlement"
	"github.com/inkwell-app/InkWell/internal/pkg/tier"
	"github.com/inkwell-app/InkWell/internal/pkg/usage"
)

const (
	ReasonLimitReached = usage.ReasonLimitReached
	ReasonNotAvailable = "feature not available at this tier"
)

// CapabilityCheck is the single authorization point for admin override
// operations. Whatever policy decides who may manage overrides lives
// behind this one function.
type CapabilityCheck func(actorID uint) bool

// Guard is the façade request handlers consume: it resolves the effective
// entitlement, looks up the tier's limits and drives the usage ledger,
// merging everything into one allow/deny answer.
type Guard struct {
	records   billing.Repository
	policy    *tier.Policy
	ledger    *usage.Ledger
	authorize CapabilityCheck
	now       func() time.Time
}

func New(records billing.Repository, policy *tier.Policy, ledger *usage.Ledger, authorize CapabilityCheck) *Guard {
	return &Guard{
		records:   records,
		policy:    policy,
		ledger:    ledger,
		authorize: authorize,
		now:       time.Now,
	}
}

// Check answers whether the action would be allowed right now without
// consuming anything.
func (g *Guard) Check(ctx context.Context, userID uint, action tier.Action, amount int64) (usage.Result, error) {
	if amount <= 0 {
		amount = 1
	}
	eff, limit, err := g.effectiveLimit(userID, action)
	if err != nil {
		return usage.Result{}, err
	}
	if limit.Zero() {
		return usage.Result{Reason: ReasonNotAvailable}, nil
	}

	now := g.now()
	rec, err := g.ledger.Peek(ctx, userID, action, now)
	if err != nil {
		return usage.Result{}, err
	}

	// An existing period row governs with its creation-time snapshot;
	// otherwise the live policy limit applies.
	used := int64(0)
	if rec != nil {
		used = rec.Used
		limit = tier.Limit{Value: rec.LimitSnapshot, Unlimited: rec.UnlimitedSnapshot}
	}

	res := usage.Result{
		Allowed:   limit.Allows(used, amount),
		Limit:     limit.Value,
		Current:   used,
		Unlimited: limit.Unlimited,
	}
	if res.Unlimited {
		res.Remaining = -1
	} else if rem := limit.Value - used; rem > 0 {
		res.Remaining = rem
	}
	if !res.Allowed {
		res.Reason = ReasonLimitReached
	}
	_ = eff
	return res, nil
}

// Reserve is the atomic check-and-consume hot path.
func (g *Guard) Reserve(ctx context.Context, userID uint, action tier.Action, amount int64) (usage.Result, error) {
	if amount <= 0 {
		amount = 1
	}
	eff, limit, err := g.effectiveLimit(userID, action)
	if err != nil {
		return usage.Result{}, err
	}
	if limit.Zero() {
		return usage.Result{Reason: ReasonNotAvailable}, nil
	}
	return g.ledger.Reserve(ctx, userID, action, amount, eff.Tier, limit, g.now())
}

// Increment records usage that already happened, bypassing the limit
// check.
func (g *Guard) Increment(ctx context.Context, userID uint, action tier.Action, amount int64) (usage.Result, error) {
	if amount <= 0 {
		amount = 1
	}
	eff, limit, err := g.effectiveLimit(userID, action)
	if err != nil {
		return usage.Result{}, err
	}
	return g.ledger.Increment(ctx, userID, action, amount, eff.Tier, limit, g.now())
}

// Decrement releases previously-counted usage, e.g. freeing storage quota
// when stored content is deleted.
func (g *Guard) Decrement(ctx context.Context, userID uint, action tier.Action, amount int64) (usage.Result, error) {
	if amount <= 0 {
		amount = 1
	}
	eff, limit, err := g.effectiveLimit(userID, action)
	if err != nil {
		return usage.Result{}, err
	}
	return g.ledger.Decrement(ctx, userID, action, amount, eff.Tier, limit, g.now())
}

func (g *Guard) effectiveLimit(userID uint, action tier.Action) (entitlement.Effective, tier.Limit, error) {
	rec, err := g.records.GetOrCreateRecord(userID)
	if err != nil {
		return entitlement.Effective{}, tier.Limit{}, err
	}
	eff := entitlement.Resolve(rec, g.now())
	return eff, g.policy.LimitFor(eff.Tier, action), nil
}

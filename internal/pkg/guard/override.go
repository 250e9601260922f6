package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell-app/InkWell/internal/pkg/entitlement"
	"github.com/inkwell-app/InkWell/internal/pkg/tier"
)

var (
	ErrNotAuthorized = errors.New("actor lacks override capability")
	ErrUnknownTier   = errors.New("unknown tier")
)

// OverrideState is the current admin override on a user, if any.
type OverrideState struct {
	Active    bool       `json:"active"`
	Tier      string     `json:"tier,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SetOverride grants a time-boxed tier override. expiresInHours of zero
// means the override never expires. Only the injected capability check
// decides who may do this; billing events can never set these fields.
func (g *Guard) SetOverride(ctx context.Context, actorID, userID uint, overrideTier string, expiresInHours int) error {
	if !g.authorize(actorID) {
		return ErrNotAuthorized
	}
	if !tier.IsKnown(overrideTier) {
		return fmt.Errorf("%w: %q", ErrUnknownTier, overrideTier)
	}

	rec, err := g.records.GetOrCreateRecord(userID)
	if err != nil {
		return err
	}

	now := g.now()
	rec.AdminOverrideTier = string(tier.Normalize(overrideTier))
	rec.AdminOverrideExpiresAt = nil
	if expiresInHours > 0 {
		expires := now.Add(time.Duration(expiresInHours) * time.Hour)
		rec.AdminOverrideExpiresAt = &expires
	}
	if err := g.records.SaveRecord(rec); err != nil {
		return err
	}

	// Snapshot this period's rows under the new effective tier for
	// actions not yet metered; rows that exist keep their snapshot.
	eff := entitlement.Resolve(rec, now)
	limits := g.policy.LimitsFor(eff.Tier)
	for _, action := range tier.Actions() {
		if err := g.ledger.EnsurePeriod(ctx, userID, action, eff.Tier, limits.For(action), now); err != nil {
			return err
		}
	}
	return nil
}

// ClearOverride removes the override, restoring billing-driven
// entitlement.
func (g *Guard) ClearOverride(ctx context.Context, actorID, userID uint) error {
	if !g.authorize(actorID) {
		return ErrNotAuthorized
	}
	rec, err := g.records.GetOrCreateRecord(userID)
	if err != nil {
		return err
	}
	rec.AdminOverrideTier = ""
	rec.AdminOverrideExpiresAt = nil
	return g.records.SaveRecord(rec)
}

// GetOverride reports the current override state for a user.
func (g *Guard) GetOverride(ctx context.Context, actorID, userID uint) (OverrideState, error) {
	if !g.authorize(actorID) {
		return OverrideState{}, ErrNotAuthorized
	}
	rec, err := g.records.GetOrCreateRecord(userID)
	if err != nil {
		return OverrideState{}, err
	}
	return OverrideState{
		Active:    rec.HasOverride(g.now()),
		Tier:      rec.AdminOverrideTier,
		ExpiresAt: rec.AdminOverrideExpiresAt,
	}, nil
}

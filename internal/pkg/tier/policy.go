package tier

import (
	"fmt"
	"strings"

	"github.com/inkwell-app/InkWell/internal/pkg/env"
)

// Limits holds the per-action ceilings for one tier.
type Limits struct {
	Generation   Limit
	StorageBytes Limit
	AuxQuestions Limit
}

// For returns the limit guarding a single action.
func (ls Limits) For(action Action) Limit {
	switch action {
	case ActionUseStorage:
		return ls.StorageBytes
	case ActionAskFollowup:
		return ls.AuxQuestions
	default:
		return ls.Generation
	}
}

// Policy is the pure tier → limits lookup. The table is fixed at
// construction; limit numbers are configuration, not code.
type Policy struct {
	limits map[Tier]Limits
}

const (
	mib = int64(1) << 20
	gib = int64(1) << 30
)

func defaultLimits() map[Tier]Limits {
	return map[Tier]Limits{
		TierFree: {
			Generation:   LimitOf(5),
			StorageBytes: LimitOf(100 * mib),
			AuxQuestions: LimitOf(0),
		},
		TierBasic: {
			Generation:   LimitOf(200),
			StorageBytes: LimitOf(5 * gib),
			AuxQuestions: LimitOf(50),
		},
		TierPro: {
			Generation:   NoLimit(),
			StorageBytes: LimitOf(50 * gib),
			AuxQuestions: NoLimit(),
		},
	}
}

// DefaultPolicy returns the built-in limit table.
func DefaultPolicy() *Policy {
	return &Policy{limits: defaultLimits()}
}

// PolicyFromEnv builds the limit table from env overrides on top of the
// defaults. Keys follow TIER_<TIER>_<ACTION>_LIMIT; -1 means unlimited.
func PolicyFromEnv() *Policy {
	limits := defaultLimits()
	for t, ls := range limits {
		ls.Generation = limitFromEnv(t, ActionGenerateContent, ls.Generation)
		ls.StorageBytes = limitFromEnv(t, ActionUseStorage, ls.StorageBytes)
		ls.AuxQuestions = limitFromEnv(t, ActionAskFollowup, ls.AuxQuestions)
		limits[t] = ls
	}
	return &Policy{limits: limits}
}

func limitFromEnv(t Tier, action Action, def Limit) Limit {
	key := fmt.Sprintf("TIER_%s_%s_LIMIT",
		strings.ToUpper(string(t)),
		strings.ToUpper(string(action)),
	)
	fallback := def.Value
	if def.Unlimited {
		fallback = -1
	}
	v := env.GetEnvInt64(key, fallback)
	if v < 0 {
		return NoLimit()
	}
	return LimitOf(v)
}

// LimitsFor returns the limits for a tier; unknown tiers fall back to
// free.
func (p *Policy) LimitsFor(t Tier) Limits {
	if ls, ok := p.limits[t]; ok {
		return ls
	}
	return p.limits[TierFree]
}

// LimitFor returns the single limit guarding an action at a tier.
func (p *Policy) LimitFor(t Tier, action Action) Limit {
	return p.LimitsFor(t).For(action)
}

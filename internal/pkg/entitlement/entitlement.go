package entitlement

import (
	"time"

	"github.com/inkwell-app/InkWell/app/models"
	"github.com/inkwell-app/InkWell/internal/pkg/tier"
)

// Effective is the entitlement a user actually holds right now: the tier
// after admin-override precedence, and the payment status straight from
// billing.
type Effective struct {
	Tier   tier.Tier
	Status string
}

// Resolve applies the override precedence rule: a set, unexpired admin
// override wins over the billing tier unconditionally. Status is always
// the billing status; overrides grant access, they do not rewrite payment
// health.
func Resolve(rec *models.BillingRecord, now time.Time) Effective {
	if rec == nil {
		return Effective{Tier: tier.TierFree, Status: models.BillingStatusActive}
	}
	if rec.HasOverride(now) {
		return Effective{
			Tier:   tier.Normalize(rec.AdminOverrideTier),
			Status: rec.Status,
		}
	}
	return Effective{
		Tier:   tier.Normalize(rec.Tier),
		Status: rec.Status,
	}
}

// Entitled reports whether the status still grants paid access. past_due
// keeps access during the dunning window; canceled and incomplete do not
// block free-tier usage since limits already reflect the tier.
func (e Effective) Entitled() bool {
	switch e.Status {
	case models.BillingStatusActive, models.BillingStatusPastDue:
		return true
	default:
		return false
	}
}

package billing

import (
	"strings"

	"github.com/inkwell-app/InkWell/app/models"
	"github.com/inkwell-app/InkWell/internal/pkg/env"
	"github.com/inkwell-app/InkWell/internal/pkg/tier"
)

// Config carries everything provider-specific the reconciler needs. Tier
// and product numbers are configuration so there is exactly one table to
// change when the catalogue moves.
type Config struct {
	Provider      string
	WebhookSecret string
	// ProductTiers maps provider product ids to internal tiers. An
	// event naming a product outside this map is rejected, never
	// defaulted to a paid tier.
	ProductTiers map[string]tier.Tier
	// ImmediateDowngrade downgrades the billing tier to free the moment
	// a cancellation arrives; otherwise the downgrade is marked for the
	// end of the paid period.
	ImmediateDowngrade bool
}

// ConfigFromEnv loads the reconciler configuration. The product map uses
// the form "prod_123:basic,prod_456:pro".
func ConfigFromEnv() Config {
	return Config{
		Provider:           strings.ToLower(strings.TrimSpace(env.GetEnv("BILLING_PROVIDER", "paylane"))),
		WebhookSecret:      env.GetEnv("BILLING_WEBHOOK_SECRET", ""),
		ProductTiers:       parseProductTierMap(env.GetEnv("BILLING_PRODUCT_TIER_MAP", "")),
		ImmediateDowngrade: env.GetEnvBool("BILLING_IMMEDIATE_DOWNGRADE", false),
	}
}

func parseProductTierMap(raw string) map[string]tier.Tier {
	out := make(map[string]tier.Tier)
	for _, pair := range strings.Split(raw, ",") {
		product, t, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		product = strings.TrimSpace(product)
		if product == "" || !tier.IsKnown(t) {
			continue
		}
		out[product] = tier.Normalize(t)
	}
	return out
}

// TierForProduct resolves a provider product id against the configured
// catalogue.
func (c Config) TierForProduct(productID string) (tier.Tier, bool) {
	t, ok := c.ProductTiers[strings.TrimSpace(productID)]
	return t, ok
}

// MapProviderStatus translates a provider status string into the local
// four-state machine via a fixed lookup table. Anything unrecognized maps
// to incomplete rather than being dropped.
func MapProviderStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing", "on_trial":
		return models.BillingStatusActive
	case "past_due", "unpaid", "declined":
		return models.BillingStatusPastDue
	case "canceled", "cancelled", "expired":
		return models.BillingStatusCanceled
	default:
		return models.BillingStatusIncomplete
	}
}

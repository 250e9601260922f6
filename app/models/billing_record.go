package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BillingStatusIncomplete = "incomplete"
	BillingStatusActive     = "active"
	BillingStatusPastDue    = "past_due"
	BillingStatusCanceled   = "canceled"
)

// BillingRecord mirrors a user's provider subscription state plus the
// admin-granted override. Billing fields are written only by the webhook
// reconciler; override fields only by the admin override setter.
type BillingRecord struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Tier                   string     `gorm:"type:varchar(50);not null;default:'free';index" json:"tier"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	DowngradeAtPeriodEnd   bool       `gorm:"default:false" json:"downgrade_at_period_end"`
	Provider               string     `gorm:"type:varchar(20);not null;default:''" json:"provider"`
	ProviderCustomerID     string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_customer_id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_subscription_id"`
	AdminOverrideTier      string     `gorm:"type:varchar(50);not null;default:''" json:"admin_override_tier"`
	AdminOverrideExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"admin_override_expires_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasOverride reports whether an admin override is present and not yet
// expired at the given instant. Absent expiry means the override never
// expires.
func (r *BillingRecord) HasOverride(now time.Time) bool {
	if r == nil || r.AdminOverrideTier == "" {
		return false
	}
	return r.AdminOverrideExpiresAt == nil || r.AdminOverrideExpiresAt.After(now)
}

// GetOrCreateBillingRecord returns the user's billing record, creating the
// signup default (free/active) when none exists yet.
func GetOrCreateBillingRecord(db *gorm.DB, userID uint) (*BillingRecord, error) {
	var rec BillingRecord
	if err := db.Where("user_id = ?", userID).First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			rec = BillingRecord{UserID: userID, Tier: "free", Status: BillingStatusActive}
			if err := db.Create(&rec).Error; err != nil {
				return nil, err
			}
			return &rec, nil
		}
		return nil, err
	}
	return &rec, nil
}

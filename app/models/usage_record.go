package models

import "time"

// UsageRecord holds one per-user, per-period, per-action counter together
// with a snapshot of the limit that was in effect when the row was
// created. Rows from elapsed periods are never mutated again.
type UsageRecord struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"not null;index:ux_usage_records_user_period_action,unique,priority:1" json:"user_id"`
	PeriodKey         string    `gorm:"type:varchar(7);not null;index:ux_usage_records_user_period_action,unique,priority:2" json:"period_key"`
	Action            string    `gorm:"type:varchar(50);not null;index:ux_usage_records_user_period_action,unique,priority:3" json:"action"`
	Used              int64     `gorm:"not null;default:0" json:"used"`
	LimitSnapshot     int64     `gorm:"not null;default:0" json:"limit_snapshot"`
	UnlimitedSnapshot bool      `gorm:"not null;default:false" json:"unlimited_snapshot"`
	TierSnapshot      string    `gorm:"type:varchar(50);not null;default:'free'" json:"tier_snapshot"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Remaining returns how much headroom the row has left, or -1 when the
// snapshot is unlimited.
func (r *UsageRecord) Remaining() int64 {
	if r.UnlimitedSnapshot {
		return -1
	}
	if rem := r.LimitSnapshot - r.Used; rem > 0 {
		return rem
	}
	return 0
}

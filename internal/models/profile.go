package models

import "time"

// Profile is the identity projection plus the cached subscription state.
// Stripe remains the source of truth for the subscription fields.
type Profile struct {
	ID                           string     `gorm:"primaryKey;size:255" json:"id"`
	Email                        string     `gorm:"size:255;index" json:"email"`
	Username                     string     `gorm:"size:100" json:"username"`
	Plan                         string     `gorm:"size:20;not null;default:'free'" json:"plan"`
	SubscriptionStatus           string     `gorm:"size:50" json:"subscription_status"`
	SubscriptionCurrentPeriodEnd *time.Time `json:"subscription_current_period_end"`
	EarlyAccess                  bool       `gorm:"default:false" json:"early_access"`
	StripeCustomerID             *string    `gorm:"size:255;uniqueIndex" json:"-"`
	CreatedAt                    time.Time  `json:"created_at"`
	UpdatedAt                    time.Time  `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

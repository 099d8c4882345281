package models

import "time"

// CreditBalance is the single remaining-credits figure per user. It has no
// ledger; writes go through the atomic add/subtract statements in the store.
// Version increases with every write and orders cache updates.
type CreditBalance struct {
	UserID    string    `gorm:"primaryKey;size:255" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	Version   int64     `gorm:"not null;default:0" json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CreditBalance) TableName() string {
	return "credit_balances"
}

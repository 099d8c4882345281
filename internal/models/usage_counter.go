package models

import "time"

// UsageCounter counts one action category for one user in one calendar month (YYYY-MM, UTC).
type UsageCounter struct {
	UserID    string    `gorm:"primaryKey;size:255" json:"user_id"`
	Action    string    `gorm:"primaryKey;size:20" json:"action"`
	Period    string    `gorm:"primaryKey;size:7" json:"period"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UsageCounter) TableName() string {
	return "usage_counters"
}

// UsagePeriod returns the counter period containing t.
func UsagePeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

package models

import "time"

// NotificationLog stores the per-channel outcome of a dispatch attempt.
// Dispatch failures never block a lifecycle transition, so the outcome
// is recorded here instead of being surfaced as an error.
type NotificationLog struct {
	ID              uint      `gorm:"primaryKey"`
	ReservationID   *uint     `gorm:"index"`
	WaitlistEntryID *uint     `gorm:"index"`
	Event           string    `gorm:"type:varchar(50);not null"`
	Channel         string    `gorm:"type:varchar(20);not null"`
	Success         bool      `gorm:"not null"`
	Detail          string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
}

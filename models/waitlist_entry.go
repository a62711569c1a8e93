package models

import "time"

type WaitlistEntry struct {
	ID           uint       `gorm:"primaryKey"`
	RestaurantID uint       `gorm:"index;not null"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	CustomerName string     `gorm:"type:varchar(100);not null"`
	Phone        string     `gorm:"type:varchar(30);not null"`
	PartySize    int        `gorm:"not null"`
	// ReservationID links the waitlist-status reservation created alongside
	// this entry, so promotion confirms that reservation instead of creating
	// a duplicate.
	ReservationID *uint     `gorm:"index"`
	Date          string    `gorm:"type:varchar(10);not null;index:idx_waitlist_slot"`
	Time          string    `gorm:"type:varchar(5);not null;index:idx_waitlist_slot"`
	Notified      bool      `gorm:"not null;default:false"`
	Status        string    `gorm:"type:varchar(20);not null;default:'waiting'"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

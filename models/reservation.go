package models

import "time"

type Reservation struct {
	ID                  uint       `gorm:"primaryKey"`
	Code                string     `gorm:"type:varchar(36);uniqueIndex;not null"`
	RestaurantID        uint       `gorm:"index;not null"`
	Restaurant          Restaurant `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	CustomerName        string     `gorm:"type:varchar(100);not null"`
	CustomerEmail       string     `gorm:"type:varchar(100)"`
	CustomerPhone       string     `gorm:"type:varchar(30)"`
	Date                string     `gorm:"type:varchar(10);not null;index:idx_reservation_slot"`
	Time                string     `gorm:"type:varchar(5);not null;index:idx_reservation_slot"`
	PartySize           int        `gorm:"not null"`
	TableID             *uint      `gorm:"index"`
	Table               *Table     `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Status              string     `gorm:"type:varchar(20);not null;default:'waitlist'"`
	SpecialInstructions string     `gorm:"type:text"`
	CreatedAt           time.Time  `gorm:"not null"`
	UpdatedAt           time.Time  `gorm:"not null"`
}

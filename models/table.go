package models

import "time"

type Table struct {
	ID           uint       `gorm:"primaryKey"`
	RestaurantID uint       `gorm:"not null;uniqueIndex:idx_table_number_per_restaurant"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	TableNumber  string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_table_number_per_restaurant"`
	Seats        int        `gorm:"not null"`
	Status       string     `gorm:"type:varchar(50);not null;default:'available'"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
}

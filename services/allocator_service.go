package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/reservation-app/models"
)

// Table status
const (
	TableStatusAvailable = "available"
	TableStatusReserved  = "reserved"
	TableStatusOccupied  = "occupied"
)

// Reservation status
const (
	ReservationStatusWaitlist  = "waitlist"
	ReservationStatusConfirmed = "confirmed"
	ReservationStatusSeated    = "seated"
	ReservationStatusCompleted = "completed"
	ReservationStatusCancelled = "cancelled"
)

// activeReservationStatuses are the statuses that hold a table.
var activeReservationStatuses = []string{ReservationStatusConfirmed, ReservationStatusSeated}

// lockingClause adds FOR UPDATE row locking on engines that support it.
// SQLite has no FOR UPDATE syntax and serializes writers on its own.
func lockingClause(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// TableAllocator picks the best-fit table for a party at an exact date+time
// slot. It never mutates state itself: the caller links the returned table to
// a reservation inside the same transaction.
type TableAllocator struct {
	db *gorm.DB
}

func NewTableAllocator(db *gorm.DB) *TableAllocator {
	return &TableAllocator{db: db}
}

// AllocateTx finds the smallest available table with seats >= partySize that
// is not already held by an active reservation for the slot, then locks it
// FOR UPDATE and re-checks availability under the lock. Must run inside tx.
//
// Returns ErrNoTableAvailable when nothing fits (a normal outcome) and
// ErrConcurrencyConflict when the candidate was taken between the candidate
// scan and the lock.
func (a *TableAllocator) AllocateTx(tx *gorm.DB, restaurantID uint, date, timeSlot string, partySize int) (*models.Table, error) {
	if partySize < 1 {
		return nil, fmt.Errorf("party size must be at least 1, got %d", partySize)
	}

	heldTables := tx.Model(&models.Reservation{}).
		Select("table_id").
		Where("restaurant_id = ? AND date = ? AND time = ? AND table_id IS NOT NULL AND status IN ?",
			restaurantID, date, timeSlot, activeReservationStatuses)

	// Best fit: smallest capacity first, lowest id breaks ties.
	var candidate models.Table
	err := tx.
		Where("restaurant_id = ? AND seats >= ? AND status = ?", restaurantID, partySize, TableStatusAvailable).
		Where("id NOT IN (?)", heldTables).
		Order("seats ASC, id ASC").
		First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoTableAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// Lock the row and re-check: a concurrent transaction may have grabbed
	// the candidate after the scan above.
	var locked models.Table
	if err := lockingClause(tx).First(&locked, candidate.ID).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if locked.Status != TableStatusAvailable {
		return nil, ErrConcurrencyConflict
	}

	var held int64
	if err := tx.Model(&models.Reservation{}).
		Where("table_id = ? AND date = ? AND time = ? AND status IN ?",
			locked.ID, date, timeSlot, activeReservationStatuses).
		Count(&held).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if held > 0 {
		return nil, ErrConcurrencyConflict
	}

	return &locked, nil
}

// lockTableTx locks a specific table FOR UPDATE and verifies it can take an
// active reservation for the slot. Used by the explicit staff paths (confirm
// with a chosen table, convert with a chosen table).
func (a *TableAllocator) lockTableTx(tx *gorm.DB, tableID uint, restaurantID uint, date, timeSlot string, partySize int) (*models.Table, error) {
	var table models.Table
	err := lockingClause(tx).
		Where("restaurant_id = ?", restaurantID).
		First(&table, tableID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoTableAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if table.Seats < partySize {
		return nil, ErrNoTableAvailable
	}
	if table.Status != TableStatusAvailable {
		return nil, ErrConcurrencyConflict
	}

	var held int64
	if err := tx.Model(&models.Reservation{}).
		Where("table_id = ? AND date = ? AND time = ? AND status IN ?",
			table.ID, date, timeSlot, activeReservationStatuses).
		Count(&held).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if held > 0 {
		return nil, ErrConcurrencyConflict
	}

	return &table, nil
}

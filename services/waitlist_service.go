package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/models"
	"github.com/yeremiapane/reservation-app/utils"
)

// Waitlist status
const (
	WaitlistStatusWaiting   = "waiting"
	WaitlistStatusNotified  = "notified"
	WaitlistStatusConverted = "converted"
	WaitlistStatusRemoved   = "removed"
)

// WaitlistPromoter converts waiting parties into confirmed reservations when
// a table frees up. It is invoked synchronously from the transition that
// freed the table; there is no background scheduler.
type WaitlistPromoter struct {
	db        *gorm.DB
	allocator *TableAllocator
	notifier  NotificationDispatcher
}

func NewWaitlistPromoter(db *gorm.DB, allocator *TableAllocator, notifier NotificationDispatcher) *WaitlistPromoter {
	return &WaitlistPromoter{db: db, allocator: allocator, notifier: notifier}
}

// Promote attempts to seat the head of the waitlist queue for the slot.
// Only the head is tried: if the first-in-line party does not fit the freed
// table, no promotion happens. First-in-line keeps priority over smaller
// parties behind it; this is a product decision, not a bug.
func (p *WaitlistPromoter) Promote(restaurantID uint, date, timeSlot string) error {
	var entry models.WaitlistEntry
	err := p.db.
		Where("restaurant_id = ? AND date = ? AND time = ? AND status = ?",
			restaurantID, date, timeSlot, WaitlistStatusWaiting).
		Order("created_at ASC, id ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	reservation, table, err := p.convertEntry(&entry, date, timeSlot, nil)
	if errors.Is(err, ErrNoTableAvailable) || errors.Is(err, ErrConcurrencyConflict) {
		utils.InfoLogger.Printf("Waitlist head (entry %d, party of %d) does not fit the freed capacity for %s %s, queue untouched",
			entry.ID, entry.PartySize, date, timeSlot)
		return nil
	}
	if err != nil {
		return err
	}

	// Best-effort: a failed "table ready" message never rolls back the
	// allocation that was just committed.
	result := p.notifier.SendTableReady(&entry, table)
	recordDispatch(p.db, result, &reservation.ID, &entry.ID)

	utils.InfoLogger.Printf("Waitlist entry %d promoted to reservation %s on table %s",
		entry.ID, reservation.Code, table.TableNumber)
	return nil
}

// PromoteOutstanding re-evaluates every slot that still has waiting parties.
// Called when capacity is added (a new table), not on ordinary transitions.
func (p *WaitlistPromoter) PromoteOutstanding(restaurantID uint) error {
	type slot struct {
		Date string
		Time string
	}
	var slots []slot
	err := p.db.Model(&models.WaitlistEntry{}).
		Distinct("date", "time").
		Where("restaurant_id = ? AND status = ?", restaurantID, WaitlistStatusWaiting).
		Order("date ASC, time ASC").
		Find(&slots).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	for _, s := range slots {
		if err := p.Promote(restaurantID, s.Date, s.Time); err != nil {
			return err
		}
	}
	return nil
}

// Convert is the explicit staff action behind POST /waitlist/:id/convert.
// Unlike Promote, an unavailable table is surfaced to the caller.
func (p *WaitlistPromoter) Convert(waitlistID uint, date, timeSlot string, tableID *uint) (*models.Reservation, error) {
	var entry models.WaitlistEntry
	if err := p.db.First(&entry, waitlistID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if entry.Status != WaitlistStatusWaiting && entry.Status != WaitlistStatusNotified {
		return nil, ErrInvalidTransition
	}

	reservation, table, err := p.convertEntry(&entry, date, timeSlot, tableID)
	if err != nil {
		return nil, err
	}

	result := p.notifier.SendTableReady(&entry, table)
	recordDispatch(p.db, result, &reservation.ID, &entry.ID)

	return reservation, nil
}

// Remove marks an entry as manually removed from the queue.
func (p *WaitlistPromoter) Remove(waitlistID uint) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	if err := p.db.First(&entry, waitlistID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if entry.Status == WaitlistStatusConverted || entry.Status == WaitlistStatusRemoved {
		return nil, ErrInvalidTransition
	}

	entry.Status = WaitlistStatusRemoved
	if err := p.db.Save(&entry).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &entry, nil
}

// Position computes the 1-based FIFO position of a waiting entry within its
// slot. Positions are derived from created_at, never stored.
func (p *WaitlistPromoter) Position(entry *models.WaitlistEntry) (int, error) {
	if entry.Status != WaitlistStatusWaiting {
		return 0, nil
	}
	var ahead int64
	err := p.db.Model(&models.WaitlistEntry{}).
		Where("restaurant_id = ? AND date = ? AND time = ? AND status = ?",
			entry.RestaurantID, entry.Date, entry.Time, WaitlistStatusWaiting).
		Where("created_at < ? OR (created_at = ? AND id < ?)", entry.CreatedAt, entry.CreatedAt, entry.ID).
		Count(&ahead).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return int(ahead) + 1, nil
}

// convertEntry allocates a table (a specific one when tableID is given) and
// links entry, reservation and table in one transaction.
func (p *WaitlistPromoter) convertEntry(entry *models.WaitlistEntry, date, timeSlot string, tableID *uint) (*models.Reservation, *models.Table, error) {
	var reservation models.Reservation
	var table *models.Table

	err := p.db.Transaction(func(tx *gorm.DB) error {
		// The caller loaded the entry outside this transaction. Re-read it
		// under lock: a concurrent promotion for the same slot (two cancels
		// at once, a double-submitted convert) may have converted it already.
		var current models.WaitlistEntry
		if err := lockingClause(tx).First(&current, entry.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if current.Status != WaitlistStatusWaiting && current.Status != WaitlistStatusNotified {
			return ErrConcurrencyConflict
		}
		*entry = current

		var t *models.Table
		var err error
		if tableID != nil {
			t, err = p.allocator.lockTableTx(tx, *tableID, entry.RestaurantID, date, timeSlot, entry.PartySize)
		} else {
			t, err = p.allocator.AllocateTx(tx, entry.RestaurantID, date, timeSlot, entry.PartySize)
		}
		if err != nil {
			return err
		}

		// Confirm the linked waitlist reservation when one exists (walk-in
		// fallback path); otherwise create a fresh one.
		linked := false
		if entry.ReservationID != nil {
			if err := tx.First(&reservation, *entry.ReservationID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}
			linked = reservation.ID != 0 && reservation.Status == ReservationStatusWaitlist
		}
		if linked {
			reservation.TableID = &t.ID
			reservation.Status = ReservationStatusConfirmed
			reservation.Date = date
			reservation.Time = timeSlot
			if err := tx.Save(&reservation).Error; err != nil {
				return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}
		} else {
			reservation = models.Reservation{
				Code:          uuid.NewString(),
				RestaurantID:  entry.RestaurantID,
				CustomerName:  entry.CustomerName,
				CustomerPhone: entry.Phone,
				Date:          date,
				Time:          timeSlot,
				PartySize:     entry.PartySize,
				TableID:       &t.ID,
				Status:        ReservationStatusConfirmed,
			}
			if err := tx.Create(&reservation).Error; err != nil {
				return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}
		}

		t.Status = TableStatusReserved
		if err := tx.Save(t).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		entry.Status = WaitlistStatusConverted
		entry.Notified = true
		if err := tx.Save(entry).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		table = t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &reservation, table, nil
}

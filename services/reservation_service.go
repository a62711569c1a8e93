package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/models"
	"github.com/yeremiapane/reservation-app/utils"
)

// allowedTransitions is the reservation state machine. Anything not listed
// here is an invalid transition, including cancelling an already-cancelled
// reservation. confirmed -> confirmed covers the staff re-confirm that swaps
// a reservation onto a different table.
var allowedTransitions = map[string]map[string]bool{
	ReservationStatusWaitlist: {
		ReservationStatusConfirmed: true,
		ReservationStatusCancelled: true,
	},
	ReservationStatusConfirmed: {
		ReservationStatusConfirmed: true,
		ReservationStatusSeated:    true,
		ReservationStatusCompleted: true,
		ReservationStatusCancelled: true,
	},
	ReservationStatusSeated: {
		ReservationStatusCompleted: true,
		ReservationStatusCancelled: true,
	},
}

// ReservationService owns every reservation and table status mutation. No
// other component writes those fields.
type ReservationService struct {
	db        *gorm.DB
	allocator *TableAllocator
	promoter  *WaitlistPromoter
	notifier  NotificationDispatcher
}

func NewReservationService(db *gorm.DB, allocator *TableAllocator, promoter *WaitlistPromoter, notifier NotificationDispatcher) *ReservationService {
	return &ReservationService{db: db, allocator: allocator, promoter: promoter, notifier: notifier}
}

type CreateReservationInput struct {
	RestaurantID        uint
	CustomerName        string
	CustomerEmail       string
	CustomerPhone       string
	Date                string
	Time                string
	PartySize           int
	SpecialInstructions string
}

// CreateReservationResult reports the outcome of a reservation request. The
// Notification field carries the per-channel dispatch outcome as metadata; a
// failed dispatch never fails the request.
type CreateReservationResult struct {
	Reservation   models.Reservation
	Table         *models.Table
	WaitlistEntry *models.WaitlistEntry
	Notification  *DispatchResult
}

func (in CreateReservationInput) validate() error {
	if in.CustomerName == "" {
		return fmt.Errorf("customer name is required")
	}
	if in.CustomerEmail == "" && in.CustomerPhone == "" {
		return fmt.Errorf("at least one contact (email or phone) is required")
	}
	if in.Date == "" || in.Time == "" {
		return fmt.Errorf("date and time are required")
	}
	if in.PartySize < 1 {
		return fmt.Errorf("party size must be at least 1")
	}
	return nil
}

// Create attempts to allocate a best-fit table for the requested slot. On
// success the reservation is confirmed and the table reserved, atomically.
// When nothing fits, the reservation persists on the waitlist (table_id
// stays null) and walk-ins with a phone number also get a waitlist entry.
func (s *ReservationService) Create(input CreateReservationInput) (*CreateReservationResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	reservation := models.Reservation{
		Code:                uuid.NewString(),
		RestaurantID:        input.RestaurantID,
		CustomerName:        input.CustomerName,
		CustomerEmail:       input.CustomerEmail,
		CustomerPhone:       input.CustomerPhone,
		Date:                input.Date,
		Time:                input.Time,
		PartySize:           input.PartySize,
		SpecialInstructions: input.SpecialInstructions,
	}

	var table *models.Table
	var err error
	// A lost race is retried once against fresh data before falling back to
	// the waitlist.
	for attempt := 0; attempt < 2; attempt++ {
		// A rolled-back Create leaves the struct with a stale primary key.
		reservation.ID = 0
		reservation.TableID = nil

		err = s.db.Transaction(func(tx *gorm.DB) error {
			t, allocErr := s.allocator.AllocateTx(tx, input.RestaurantID, input.Date, input.Time, input.PartySize)
			if allocErr != nil {
				return allocErr
			}

			reservation.TableID = &t.ID
			reservation.Status = ReservationStatusConfirmed
			if err := tx.Create(&reservation).Error; err != nil {
				return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}

			t.Status = TableStatusReserved
			if err := tx.Save(t).Error; err != nil {
				return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}

			table = t
			return nil
		})
		if !errors.Is(err, ErrConcurrencyConflict) {
			break
		}
		utils.InfoLogger.Printf("Allocation for %s %s lost a race, retrying once", input.Date, input.Time)
	}

	if errors.Is(err, ErrNoTableAvailable) || errors.Is(err, ErrConcurrencyConflict) {
		return s.createWaitlisted(&reservation, input)
	}
	if err != nil {
		return nil, err
	}

	result := &CreateReservationResult{Reservation: reservation, Table: table}
	dispatch := s.notifier.SendReservationConfirmed(&reservation)
	recordDispatch(s.db, dispatch, &reservation.ID, nil)
	result.Notification = &dispatch

	utils.InfoLogger.Printf("Reservation %s confirmed on table %s for %s %s (party of %d)",
		reservation.Code, table.TableNumber, reservation.Date, reservation.Time, reservation.PartySize)
	return result, nil
}

// createWaitlisted persists the no-availability outcome: the reservation
// stays on the waitlist and a queue entry is created for walk-ins that left
// a phone number. No table is touched.
func (s *ReservationService) createWaitlisted(reservation *models.Reservation, input CreateReservationInput) (*CreateReservationResult, error) {
	reservation.ID = 0
	reservation.TableID = nil
	reservation.Status = ReservationStatusWaitlist

	result := &CreateReservationResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reservation).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if input.CustomerPhone != "" {
			entry := models.WaitlistEntry{
				RestaurantID:  input.RestaurantID,
				CustomerName:  input.CustomerName,
				Phone:         input.CustomerPhone,
				PartySize:     input.PartySize,
				ReservationID: &reservation.ID,
				Date:          input.Date,
				Time:          input.Time,
				Status:        WaitlistStatusWaiting,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
			}
			result.WaitlistEntry = &entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Reservation = *reservation
	utils.InfoLogger.Printf("No table for %s %s (party of %d), reservation %s routed to waitlist",
		reservation.Date, reservation.Time, reservation.PartySize, reservation.Code)
	return result, nil
}

// UpdateStatus drives the state machine. Table side-effects and the status
// write happen in one transaction; freeing a table triggers a synchronous
// promotion pass for the slot after commit.
func (s *ReservationService) UpdateStatus(reservationID uint, newStatus string, tableID *uint) (*models.Reservation, error) {
	var reservation models.Reservation
	freed := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockingClause(tx).First(&reservation, reservationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		if !allowedTransitions[reservation.Status][newStatus] {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, reservation.Status, newStatus)
		}

		switch newStatus {
		case ReservationStatusConfirmed:
			if err := s.confirmTx(tx, &reservation, tableID); err != nil {
				return err
			}
		case ReservationStatusSeated:
			if err := setTableStatusTx(tx, *reservation.TableID, TableStatusOccupied); err != nil {
				return err
			}
		case ReservationStatusCompleted, ReservationStatusCancelled:
			if reservation.TableID != nil {
				if err := setTableStatusTx(tx, *reservation.TableID, TableStatusAvailable); err != nil {
					return err
				}
				reservation.TableID = nil
				freed = true
			}
		}

		reservation.Status = newStatus
		if err := tx.Save(&reservation).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if newStatus == ReservationStatusConfirmed {
		dispatch := s.notifier.SendReservationConfirmed(&reservation)
		recordDispatch(s.db, dispatch, &reservation.ID, nil)
	}

	if freed {
		if err := s.promoter.Promote(reservation.RestaurantID, reservation.Date, reservation.Time); err != nil {
			utils.ErrorLogger.Printf("Waitlist promotion after reservation %d %s failed: %v",
				reservation.ID, newStatus, err)
		}
	}

	utils.InfoLogger.Printf("Reservation %d status changed to %s", reservation.ID, newStatus)
	return &reservation, nil
}

// confirmTx handles the explicit staff confirm, including moving the
// reservation onto a different table: the old table reverts to available and
// the new one becomes reserved, all inside the caller's transaction.
func (s *ReservationService) confirmTx(tx *gorm.DB, reservation *models.Reservation, tableID *uint) error {
	switch {
	case tableID != nil && (reservation.TableID == nil || *reservation.TableID != *tableID):
		newTable, err := s.allocator.lockTableTx(tx, *tableID, reservation.RestaurantID,
			reservation.Date, reservation.Time, reservation.PartySize)
		if err != nil {
			return err
		}
		if reservation.TableID != nil {
			if err := setTableStatusTx(tx, *reservation.TableID, TableStatusAvailable); err != nil {
				return err
			}
		}
		reservation.TableID = &newTable.ID
		newTable.Status = TableStatusReserved
		if err := tx.Save(newTable).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

	case reservation.TableID == nil:
		// Confirm from the waitlist without a chosen table: best fit.
		t, err := s.allocator.AllocateTx(tx, reservation.RestaurantID,
			reservation.Date, reservation.Time, reservation.PartySize)
		if err != nil {
			return err
		}
		reservation.TableID = &t.ID
		t.Status = TableStatusReserved
		if err := tx.Save(t).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	return nil
}

// Delete removes a reservation. A held table reverts to available and the
// slot gets a promotion pass, same as cancel.
func (s *ReservationService) Delete(reservationID uint) (*models.Reservation, error) {
	var reservation models.Reservation
	freed := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockingClause(tx).First(&reservation, reservationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		if reservation.TableID != nil {
			if err := setTableStatusTx(tx, *reservation.TableID, TableStatusAvailable); err != nil {
				return err
			}
			freed = true
		}

		if err := tx.Delete(&reservation).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if freed {
		if err := s.promoter.Promote(reservation.RestaurantID, reservation.Date, reservation.Time); err != nil {
			utils.ErrorLogger.Printf("Waitlist promotion after deleting reservation %d failed: %v",
				reservation.ID, err)
		}
	}

	utils.InfoLogger.Printf("Reservation %d deleted", reservation.ID)
	return &reservation, nil
}

func setTableStatusTx(tx *gorm.DB, tableID uint, status string) error {
	if err := tx.Model(&models.Table{}).Where("id = ?", tableID).Update("status", status).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/floor"
	"github.com/yeremiapane/reservation-app/models"
	"github.com/yeremiapane/reservation-app/services"
	"github.com/yeremiapane/reservation-app/utils"
)

type ReservationController struct {
	DB      *gorm.DB
	Service *services.ReservationService
}

func NewReservationController(db *gorm.DB, service *services.ReservationService) *ReservationController {
	return &ReservationController{DB: db, Service: service}
}

// parseSlot validates the exact-match slot format (YYYY-MM-DD, HH:MM).
func parseSlot(date, timeSlot string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	if _, err := time.Parse("15:04", timeSlot); err != nil {
		return fmt.Errorf("invalid time %q, expected HH:MM", timeSlot)
	}
	return nil
}

// CreateReservation -> book a table, or land on the waitlist when nothing fits
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var req struct {
		RestaurantID        uint   `json:"restaurant_id" binding:"required"`
		CustomerName        string `json:"customer_name" binding:"required"`
		CustomerEmail       string `json:"customer_email"`
		CustomerPhone       string `json:"customer_phone"`
		Date                string `json:"date" binding:"required"`
		Time                string `json:"time" binding:"required"`
		PartySize           int    `json:"party_size" binding:"required,min=1"`
		SpecialInstructions string `json:"special_instructions"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := parseSlot(req.Date, req.Time); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := rc.Service.Create(services.CreateReservationInput{
		RestaurantID:        req.RestaurantID,
		CustomerName:        req.CustomerName,
		CustomerEmail:       req.CustomerEmail,
		CustomerPhone:       req.CustomerPhone,
		Date:                req.Date,
		Time:                req.Time,
		PartySize:           req.PartySize,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		if errors.Is(err, services.ErrStorageUnavailable) {
			utils.RespondError(c, http.StatusInternalServerError, err)
		} else {
			utils.RespondError(c, http.StatusBadRequest, err)
		}
		return
	}

	floor.BroadcastReservationCreate(result.Reservation)
	if result.Table != nil {
		floor.BroadcastTableUpdate(*result.Table)
	}

	utils.RespondJSON(c, http.StatusCreated, "Reservation created", gin.H{
		"status":       result.Reservation.Status,
		"reservation":  result.Reservation,
		"table":        result.Table,
		"waitlist":     result.WaitlistEntry,
		"notification": result.Notification,
	})
}

// GetAllReservations -> list reservations, optional restaurant/date/status filters
func (rc *ReservationController) GetAllReservations(c *gin.Context) {
	query := rc.DB.Model(&models.Reservation{})
	if restaurantID := c.Query("restaurant_id"); restaurantID != "" {
		query = query.Where("restaurant_id = ?", restaurantID)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("date = ?", date)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var reservations []models.Reservation
	if err := query.Preload("Table").Order("date ASC, time ASC").Find(&reservations).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", reservations)
}

// GetReservationByID -> detail of a single reservation
func (rc *ReservationController) GetReservationByID(c *gin.Context) {
	reservationID := c.Param("reservation_id")
	var reservation models.Reservation
	if err := rc.DB.Preload("Table").First(&reservation, reservationID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation detail", reservation)
}

// UpdateReservationStatus -> drive the lifecycle (confirm/seat/complete/cancel)
func (rc *ReservationController) UpdateReservationStatus(c *gin.Context) {
	reservationID := c.Param("reservation_id")
	var body struct {
		Status  string `json:"status" binding:"required"`
		TableID *uint  `json:"table_id"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var reservation models.Reservation
	if err := rc.DB.First(&reservation, reservationID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	updated, err := rc.Service.UpdateStatus(reservation.ID, body.Status, body.TableID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidTransition):
			utils.RespondError(c, http.StatusBadRequest, err)
		case errors.Is(err, services.ErrNoTableAvailable), errors.Is(err, services.ErrConcurrencyConflict):
			utils.RespondError(c, http.StatusConflict, err)
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.RespondError(c, http.StatusNotFound, err)
		default:
			utils.RespondError(c, http.StatusInternalServerError, err)
		}
		return
	}

	floor.BroadcastReservationUpdate(*updated)
	utils.RespondJSON(c, http.StatusOK, "Reservation status updated", updated)
}

// DeleteReservation -> remove a reservation, freeing its table
func (rc *ReservationController) DeleteReservation(c *gin.Context) {
	reservationID := c.Param("reservation_id")
	var reservation models.Reservation
	if err := rc.DB.First(&reservation, reservationID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	deleted, err := rc.Service.Delete(reservation.ID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	floor.BroadcastReservationDelete(*deleted)
	utils.RespondJSON(c, http.StatusOK, "Reservation deleted", gin.H{
		"id": deleted.ID,
	})
}

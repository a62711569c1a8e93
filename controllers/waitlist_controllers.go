package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/floor"
	"github.com/yeremiapane/reservation-app/models"
	"github.com/yeremiapane/reservation-app/services"
	"github.com/yeremiapane/reservation-app/utils"
)

type WaitlistController struct {
	DB       *gorm.DB
	Promoter *services.WaitlistPromoter
}

func NewWaitlistController(db *gorm.DB, promoter *services.WaitlistPromoter) *WaitlistController {
	return &WaitlistController{DB: db, Promoter: promoter}
}

// GetWaitlist -> FIFO view of the queue with computed positions
func (wc *WaitlistController) GetWaitlist(c *gin.Context) {
	query := wc.DB.Model(&models.WaitlistEntry{})
	if restaurantID := c.Query("restaurant_id"); restaurantID != "" {
		query = query.Where("restaurant_id = ?", restaurantID)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("date = ?", date)
	}
	status := c.Query("status")
	if status == "" {
		status = services.WaitlistStatusWaiting
	}
	query = query.Where("status = ?", status)

	var entries []models.WaitlistEntry
	if err := query.Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	type entryWithPosition struct {
		models.WaitlistEntry
		Position int `json:"position"`
	}
	list := make([]entryWithPosition, 0, len(entries))
	for _, entry := range entries {
		pos, err := wc.Promoter.Position(&entry)
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		list = append(list, entryWithPosition{WaitlistEntry: entry, Position: pos})
	}

	utils.RespondJSON(c, http.StatusOK, "Waitlist entries", list)
}

// ConvertWaitlistEntry -> staff converts a waiting party into a reservation
func (wc *WaitlistController) ConvertWaitlistEntry(c *gin.Context) {
	waitlistID := c.Param("waitlist_id")
	var body struct {
		Date    string `json:"date" binding:"required"`
		Time    string `json:"time" binding:"required"`
		TableID *uint  `json:"table_id"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if err := parseSlot(body.Date, body.Time); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var entry models.WaitlistEntry
	if err := wc.DB.First(&entry, waitlistID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	reservation, err := wc.Promoter.Convert(entry.ID, body.Date, body.Time, body.TableID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoTableAvailable), errors.Is(err, services.ErrConcurrencyConflict):
			utils.RespondError(c, http.StatusConflict, err)
		case errors.Is(err, services.ErrInvalidTransition):
			utils.RespondError(c, http.StatusBadRequest, err)
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.RespondError(c, http.StatusNotFound, err)
		default:
			utils.RespondError(c, http.StatusInternalServerError, err)
		}
		return
	}

	floor.BroadcastReservationCreate(*reservation)
	floor.BroadcastWaitlistUpdate(entry)
	utils.RespondJSON(c, http.StatusOK, "Waitlist entry converted", gin.H{
		"reservation": reservation,
	})
}

// RemoveWaitlistEntry -> manual removal from the queue
func (wc *WaitlistController) RemoveWaitlistEntry(c *gin.Context) {
	waitlistID := c.Param("waitlist_id")
	var entry models.WaitlistEntry
	if err := wc.DB.First(&entry, waitlistID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	removed, err := wc.Promoter.Remove(entry.ID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			utils.RespondError(c, http.StatusBadRequest, err)
		} else {
			utils.RespondError(c, http.StatusInternalServerError, err)
		}
		return
	}

	floor.BroadcastWaitlistUpdate(*removed)
	utils.RespondJSON(c, http.StatusOK, "Waitlist entry removed", removed)
}

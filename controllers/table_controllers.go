package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/floor"
	"github.com/yeremiapane/reservation-app/models"
	"github.com/yeremiapane/reservation-app/services"
	"github.com/yeremiapane/reservation-app/utils"
)

type TableController struct {
	DB       *gorm.DB
	Promoter *services.WaitlistPromoter
}

func NewTableController(db *gorm.DB, promoter *services.WaitlistPromoter) *TableController {
	return &TableController{DB: db, Promoter: promoter}
}

// CreateTable -> add a new table to the floor
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		RestaurantID uint   `json:"restaurant_id" binding:"required"`
		TableNumber  string `json:"table_number" binding:"required"`
		Seats        int    `json:"seats" binding:"required,min=1"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table := models.Table{
		RestaurantID: req.RestaurantID,
		TableNumber:  req.TableNumber,
		Seats:        req.Seats,
		Status:       services.TableStatusAvailable,
	}

	if err := tc.DB.Create(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	// Fresh capacity: waiting parties may now fit.
	if err := tc.Promoter.PromoteOutstanding(req.RestaurantID); err != nil {
		utils.ErrorLogger.Printf("Waitlist promotion after creating table %d failed: %v", table.ID, err)
	}

	floor.BroadcastTableCreate(table)
	utils.InfoLogger.Printf("New table created: %s (seats=%d)", table.TableNumber, table.Seats)
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables -> list all tables
func (tc *TableController) GetAllTables(c *gin.Context) {
	query := tc.DB.Model(&models.Table{})
	if restaurantID := c.Query("restaurant_id"); restaurantID != "" {
		query = query.Where("restaurant_id = ?", restaurantID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var tables []models.Table
	if err := query.Order("id ASC").Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// GetTableByID -> detail of a single table
func (tc *TableController) GetTableByID(c *gin.Context) {
	tableID := c.Param("table_id")
	var table models.Table
	if err := tc.DB.First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// DeleteTable -> remove a table; refused while an active reservation holds it
func (tc *TableController) DeleteTable(c *gin.Context) {
	tableID := c.Param("table_id")
	var table models.Table

	if err := tc.DB.First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	var active int64
	if err := tc.DB.Model(&models.Reservation{}).
		Where("table_id = ? AND status IN ?", table.ID,
			[]string{services.ReservationStatusConfirmed, services.ReservationStatusSeated}).
		Count(&active).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if active > 0 {
		utils.RespondError(c, http.StatusConflict, fmt.Errorf("table %s has an active reservation", table.TableNumber))
		return
	}

	if err := tc.DB.Delete(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	floor.BroadcastTableDelete(table)
	utils.InfoLogger.Printf("Table %d deleted", table.ID)
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{
		"id": table.ID,
	})
}

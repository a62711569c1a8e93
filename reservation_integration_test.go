package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/models"
	"github.com/yeremiapane/reservation-app/router"
	"github.com/yeremiapane/reservation-app/services"
	"github.com/yeremiapane/reservation-app/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

type silentDispatcher struct{}

func (silentDispatcher) SendReservationConfirmed(res *models.Reservation) services.DispatchResult {
	return services.DispatchResult{Event: services.NotificationEventReservationConfirmed}
}

func (silentDispatcher) SendTableReady(entry *models.WaitlistEntry, table *models.Table) services.DispatchResult {
	return services.DispatchResult{Event: services.NotificationEventTableReady}
}

// setupIntegrationDB -> in-memory SQLite with two tables on the floor
func setupIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Restaurant{},
		&models.Table{},
		&models.Reservation{},
		&models.WaitlistEntry{},
		&models.NotificationLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	db.Create(&models.Restaurant{Name: "Integration Bistro", Timezone: "UTC"})
	db.Create(&models.Table{RestaurantID: 1, TableNumber: "1", Seats: 2, Status: "available"})
	db.Create(&models.Table{RestaurantID: 1, TableNumber: "2", Seats: 4, Status: "available"})
	return db
}

func bookParty(t *testing.T, r *gin.Engine, name, phone string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"restaurant_id":  1,
		"customer_name":  name,
		"customer_phone": phone,
		"date":           "2024-08-10",
		"time":           "19:00",
		"party_size":     2,
	})
	req := httptest.NewRequest(http.MethodPost, "/reservations", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response["data"].(map[string]interface{})
}

// TestReservationEndToEnd walks the main flow:
// 1. A books party of 2 -> confirmed on table 1 (best fit)
// 2. B books party of 2 -> confirmed on table 2 (table 1 taken)
// 3. C books party of 2 -> waitlist (no table left)
// 4. Cancel A -> table 1 frees -> C promoted onto table 1
func TestReservationEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupIntegrationDB(t)
	r := router.SetupRouter(db, silentDispatcher{})

	// 1. Request A
	dataA := bookParty(t, r, "Party A", "0810000001")
	assert.Equal(t, "confirmed", dataA["status"])
	reservationA := dataA["reservation"].(map[string]interface{})
	tableA := dataA["table"].(map[string]interface{})
	assert.Equal(t, float64(1), tableA["ID"])

	// 2. Request B lands on the larger table
	dataB := bookParty(t, r, "Party B", "0810000002")
	assert.Equal(t, "confirmed", dataB["status"])
	tableB := dataB["table"].(map[string]interface{})
	assert.Equal(t, float64(2), tableB["ID"])

	// 3. Request C has nothing left
	dataC := bookParty(t, r, "Party C", "0810000003")
	assert.Equal(t, "waitlist", dataC["status"])
	reservationC := dataC["reservation"].(map[string]interface{})
	assert.NotNil(t, dataC["waitlist"])

	// 4. Cancel A: table 1 frees and C is promoted synchronously
	idA := int(reservationA["ID"].(float64))
	payload, _ := json.Marshal(map[string]string{"status": "cancelled"})
	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/reservations/%d/status", idA), bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	idC := uint(reservationC["ID"].(float64))
	var promoted models.Reservation
	assert.NoError(t, db.First(&promoted, idC).Error)
	assert.Equal(t, "confirmed", promoted.Status)
	if assert.NotNil(t, promoted.TableID) {
		assert.Equal(t, uint(1), *promoted.TableID)
	}

	var table1 models.Table
	assert.NoError(t, db.First(&table1, 1).Error)
	assert.Equal(t, "reserved", table1.Status)

	var entry models.WaitlistEntry
	assert.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "converted", entry.Status)
	assert.True(t, entry.Notified)
}

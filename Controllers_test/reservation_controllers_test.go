package Controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
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

// noopDispatcher satisfies the dispatcher contract without a gateway.
type noopDispatcher struct{}

func (noopDispatcher) SendReservationConfirmed(res *models.Reservation) services.DispatchResult {
	return services.DispatchResult{Event: services.NotificationEventReservationConfirmed}
}

func (noopDispatcher) SendTableReady(entry *models.WaitlistEntry, table *models.Table) services.DispatchResult {
	return services.DispatchResult{Event: services.NotificationEventTableReady}
}

// setupTestDBForReservations builds a per-test in-memory SQLite database.
func setupTestDBForReservations(t *testing.T) *gorm.DB {
	t.Helper()
	utils.InitLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
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
	db.Create(&models.Restaurant{Name: "Test Bistro", Timezone: "UTC"})
	return db
}

func setupReservationRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return router.SetupRouter(db, noopDispatcher{})
}

func postJSON(t *testing.T, r *gin.Engine, url string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	assert.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateReservationConfirmedResponse(t *testing.T) {
	db := setupTestDBForReservations(t)
	db.Create(&models.Table{RestaurantID: 1, TableNumber: "A1", Seats: 4, Status: "available"})
	r := setupReservationRouter(db)

	w := postJSON(t, r, "/reservations", map[string]interface{}{
		"restaurant_id":  1,
		"customer_name":  "Alice",
		"customer_phone": "0811111111",
		"date":           "2024-08-10",
		"time":           "19:00",
		"party_size":     3,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Reservation created", response["message"])

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "confirmed", data["status"])
	assert.NotNil(t, data["table"])
}

func TestCreateReservationWaitlistResponse(t *testing.T) {
	db := setupTestDBForReservations(t)
	db.Create(&models.Table{RestaurantID: 1, TableNumber: "A1", Seats: 2, Status: "available"})
	r := setupReservationRouter(db)

	w := postJSON(t, r, "/reservations", map[string]interface{}{
		"restaurant_id":  1,
		"customer_name":  "Bob",
		"customer_phone": "0822222222",
		"date":           "2024-08-10",
		"time":           "19:00",
		"party_size":     6,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "waitlist", data["status"])
	assert.NotNil(t, data["waitlist"])
}

func TestCreateReservationRejectsBadSlot(t *testing.T) {
	db := setupTestDBForReservations(t)
	r := setupReservationRouter(db)

	w := postJSON(t, r, "/reservations", map[string]interface{}{
		"restaurant_id":  1,
		"customer_name":  "Carol",
		"customer_phone": "0833333333",
		"date":           "10-08-2024",
		"time":           "19:00",
		"party_size":     2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateReservationStatusInvalidTransition(t *testing.T) {
	db := setupTestDBForReservations(t)
	db.Create(&models.Table{RestaurantID: 1, TableNumber: "A1", Seats: 4, Status: "available"})
	r := setupReservationRouter(db)

	w := postJSON(t, r, "/reservations", map[string]interface{}{
		"restaurant_id":  1,
		"customer_name":  "Dave",
		"customer_phone": "0844444444",
		"date":           "2024-08-10",
		"time":           "19:00",
		"party_size":     2,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	reservation := data["reservation"].(map[string]interface{})
	id := int(reservation["ID"].(float64))

	// completed -> cancelled is not a legal transition
	payload, _ := json.Marshal(map[string]string{"status": "completed"})
	req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("/reservations/%d/status", id), bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	payload, _ = json.Marshal(map[string]string{"status": "cancelled"})
	req, _ = http.NewRequest(http.MethodPatch, fmt.Sprintf("/reservations/%d/status", id), bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteReservation(t *testing.T) {
	db := setupTestDBForReservations(t)
	db.Create(&models.Table{RestaurantID: 1, TableNumber: "A1", Seats: 4, Status: "available"})
	r := setupReservationRouter(db)

	w := postJSON(t, r, "/reservations", map[string]interface{}{
		"restaurant_id":  1,
		"customer_name":  "Erin",
		"customer_phone": "0855555555",
		"date":           "2024-08-10",
		"time":           "19:00",
		"party_size":     2,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	reservation := data["reservation"].(map[string]interface{})
	id := int(reservation["ID"].(float64))

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("/reservations/%d", id), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var table models.Table
	assert.NoError(t, db.First(&table, 1).Error)
	assert.Equal(t, "available", table.Status)
}

package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/models"
	"github.com/yeremiapane/reservation-app/utils"
)

// fakeDispatcher records notifications instead of hitting the gateway.
type fakeDispatcher struct {
	mu         sync.Mutex
	confirmed  []models.Reservation
	tableReady []models.WaitlistEntry
	fail       bool
}

func (f *fakeDispatcher) SendReservationConfirmed(res *models.Reservation) DispatchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, *res)
	return f.result(NotificationEventReservationConfirmed, res.CustomerEmail != "", res.CustomerPhone != "")
}

func (f *fakeDispatcher) SendTableReady(entry *models.WaitlistEntry, table *models.Table) DispatchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableReady = append(f.tableReady, *entry)
	return f.result(NotificationEventTableReady, false, entry.Phone != "")
}

func (f *fakeDispatcher) result(event string, email, phone bool) DispatchResult {
	result := DispatchResult{Event: event}
	if email {
		result.Channels = append(result.Channels, ChannelResult{Channel: "email", Success: !f.fail})
	}
	if phone {
		result.Channels = append(result.Channels, ChannelResult{Channel: "sms", Success: !f.fail})
		result.Channels = append(result.Channels, ChannelResult{Channel: "whatsapp", Success: !f.fail})
	}
	return result
}

type testEnv struct {
	db        *gorm.DB
	allocator *TableAllocator
	promoter  *WaitlistPromoter
	service   *ReservationService
	notifier  *fakeDispatcher
}

// newTestEnv builds the service stack on an in-memory SQLite database.
// A single connection keeps the shared in-memory DB visible to every
// transaction and serializes concurrent callers the way row locks do on
// MySQL.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	utils.InitLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
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

	if err := db.Create(&models.Restaurant{Name: "Test Bistro", Timezone: "UTC"}).Error; err != nil {
		t.Fatalf("failed to seed restaurant: %v", err)
	}

	notifier := &fakeDispatcher{}
	allocator := NewTableAllocator(db)
	promoter := NewWaitlistPromoter(db, allocator, notifier)
	service := NewReservationService(db, allocator, promoter, notifier)

	return &testEnv{
		db:        db,
		allocator: allocator,
		promoter:  promoter,
		service:   service,
		notifier:  notifier,
	}
}

func (e *testEnv) seedTable(t *testing.T, number string, seats int) models.Table {
	t.Helper()
	table := models.Table{
		RestaurantID: 1,
		TableNumber:  number,
		Seats:        seats,
		Status:       TableStatusAvailable,
	}
	if err := e.db.Create(&table).Error; err != nil {
		t.Fatalf("failed to seed table %s: %v", number, err)
	}
	return table
}

func (e *testEnv) seedWaitlistEntry(t *testing.T, name, phone string, partySize int, date, timeSlot string, createdAt time.Time) models.WaitlistEntry {
	t.Helper()
	entry := models.WaitlistEntry{
		RestaurantID: 1,
		CustomerName: name,
		Phone:        phone,
		PartySize:    partySize,
		Date:         date,
		Time:         timeSlot,
		Status:       WaitlistStatusWaiting,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if err := e.db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to seed waitlist entry for %s: %v", name, err)
	}
	return entry
}

func (e *testEnv) reloadTable(t *testing.T, id uint) models.Table {
	t.Helper()
	var table models.Table
	if err := e.db.First(&table, id).Error; err != nil {
		t.Fatalf("failed to reload table %d: %v", id, err)
	}
	return table
}

func (e *testEnv) reloadReservation(t *testing.T, id uint) models.Reservation {
	t.Helper()
	var reservation models.Reservation
	if err := e.db.First(&reservation, id).Error; err != nil {
		t.Fatalf("failed to reload reservation %d: %v", id, err)
	}
	return reservation
}

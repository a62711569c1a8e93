package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/models"
	"github.com/yeremiapane/reservation-app/utils"
)

// Notification events
const (
	NotificationEventReservationConfirmed = "reservation_confirmed"
	NotificationEventTableReady           = "table_ready"
)

// ChannelResult is the outcome of one delivery channel.
type ChannelResult struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
}

// DispatchResult collects per-channel outcomes for one notification event.
// A dispatch never fails the calling lifecycle transition: the caller logs
// and records the result instead.
type DispatchResult struct {
	Event    string          `json:"event"`
	Channels []ChannelResult `json:"channels"`
}

// Failed returns the channels that did not deliver.
func (r DispatchResult) Failed() []ChannelResult {
	var failed []ChannelResult
	for _, ch := range r.Channels {
		if !ch.Success {
			failed = append(failed, ch)
		}
	}
	return failed
}

// NotificationDispatcher informs customers of reservation events over the
// configured channels (email/SMS/WhatsApp). Implementations are best-effort.
type NotificationDispatcher interface {
	SendReservationConfirmed(res *models.Reservation) DispatchResult
	SendTableReady(entry *models.WaitlistEntry, table *models.Table) DispatchResult
}

// GatewayConfig holds messaging gateway configuration
type GatewayConfig struct {
	BaseURL        string
	APIKey         string
	EmailFrom      string
	SMSSenderID    string
	WhatsAppNumber string
}

// GatewayDispatcher talks to an external multi-channel messaging gateway
// over its REST API.
type GatewayDispatcher struct {
	config     *GatewayConfig
	httpClient *http.Client
}

var (
	gatewayDispatcher *GatewayDispatcher
	gatewayOnce       sync.Once
)

// GetGatewayDispatcher returns singleton instance of GatewayDispatcher
func GetGatewayDispatcher() *GatewayDispatcher {
	gatewayOnce.Do(func() {
		baseURL := os.Getenv("NOTIFY_GATEWAY_URL")
		apiKey := os.Getenv("NOTIFY_GATEWAY_API_KEY")
		emailFrom := os.Getenv("NOTIFY_EMAIL_FROM")
		smsSenderID := os.Getenv("NOTIFY_SMS_SENDER_ID")
		whatsAppNumber := os.Getenv("NOTIFY_WHATSAPP_NUMBER")

		if baseURL == "" {
			utils.InfoLogger.Println("WARNING: NOTIFY_GATEWAY_URL is empty, using sandbox gateway")
			baseURL = "https://sandbox.gateway.example.com"
		}
		if emailFrom == "" {
			emailFrom = "reservations@example.com"
		}
		if smsSenderID == "" {
			smsSenderID = "RESTAURANT"
		}

		gatewayDispatcher = &GatewayDispatcher{
			config: &GatewayConfig{
				BaseURL:        baseURL,
				APIKey:         apiKey,
				EmailFrom:      emailFrom,
				SMSSenderID:    smsSenderID,
				WhatsAppNumber: whatsAppNumber,
			},
			httpClient: &http.Client{
				Timeout: 30 * time.Second,
			},
		}
	})
	return gatewayDispatcher
}

// SendReservationConfirmed notifies the customer that a table is booked.
func (gd *GatewayDispatcher) SendReservationConfirmed(res *models.Reservation) DispatchResult {
	message := fmt.Sprintf("Hi %s, your reservation %s for %d on %s at %s is confirmed.",
		res.CustomerName, res.Code, res.PartySize, res.Date, res.Time)
	subject := "Reservation confirmed"

	result := DispatchResult{Event: NotificationEventReservationConfirmed}
	if res.CustomerEmail != "" {
		result.Channels = append(result.Channels, gd.send("email", res.CustomerEmail, subject, message))
	}
	if res.CustomerPhone != "" {
		result.Channels = append(result.Channels, gd.send("sms", res.CustomerPhone, subject, message))
		result.Channels = append(result.Channels, gd.send("whatsapp", res.CustomerPhone, subject, message))
	}
	return result
}

// SendTableReady notifies a waiting party that their table has freed up.
func (gd *GatewayDispatcher) SendTableReady(entry *models.WaitlistEntry, table *models.Table) DispatchResult {
	message := fmt.Sprintf("Hi %s, table %s is ready for your party of %d. Please see the host.",
		entry.CustomerName, table.TableNumber, entry.PartySize)
	subject := "Your table is ready"

	result := DispatchResult{Event: NotificationEventTableReady}
	if entry.Phone != "" {
		result.Channels = append(result.Channels, gd.send("sms", entry.Phone, subject, message))
		result.Channels = append(result.Channels, gd.send("whatsapp", entry.Phone, subject, message))
	}
	return result
}

// send posts one message to the gateway's channel endpoint.
func (gd *GatewayDispatcher) send(channel, to, subject, message string) ChannelResult {
	payload := map[string]string{
		"to":      to,
		"subject": subject,
		"message": message,
	}
	switch channel {
	case "email":
		payload["from"] = gd.config.EmailFrom
	case "sms":
		payload["sender_id"] = gd.config.SMSSenderID
	case "whatsapp":
		payload["from_number"] = gd.config.WhatsAppNumber
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ChannelResult{Channel: channel, Success: false, Detail: err.Error()}
	}

	url := fmt.Sprintf("%s/v1/messages/%s", gd.config.BaseURL, channel)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return ChannelResult{Channel: channel, Success: false, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+gd.config.APIKey)

	resp, err := gd.httpClient.Do(req)
	if err != nil {
		return ChannelResult{Channel: channel, Success: false, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ChannelResult{Channel: channel, Success: true}
	}
	return ChannelResult{Channel: channel, Success: false, Detail: fmt.Sprintf("gateway returned %d", resp.StatusCode)}
}

// recordDispatch logs the dispatch result and persists the per-channel
// outcomes. Errors here are logged and swallowed: notification bookkeeping
// must never fail a committed transition.
func recordDispatch(db *gorm.DB, result DispatchResult, reservationID, waitlistEntryID *uint) {
	for _, ch := range result.Channels {
		if !ch.Success {
			utils.ErrorLogger.Printf("Notification %s via %s failed: %s", result.Event, ch.Channel, ch.Detail)
		} else {
			utils.InfoLogger.Printf("Notification %s via %s delivered", result.Event, ch.Channel)
		}

		logEntry := models.NotificationLog{
			ReservationID:   reservationID,
			WaitlistEntryID: waitlistEntryID,
			Event:           result.Event,
			Channel:         ch.Channel,
			Success:         ch.Success,
			Detail:          ch.Detail,
		}
		if err := db.Create(&logEntry).Error; err != nil {
			utils.ErrorLogger.Printf("Failed to persist notification log: %v", err)
		}
	}
}

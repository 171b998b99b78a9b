package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/doctorry/platform/internal/shared/types"
)

// Channel represents the delivery channel of a notification
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Priority represents notification priority
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Status represents notification delivery status
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification represents a message to be delivered to a user
type Notification struct {
	ID       string   `json:"id"`
	Channel  Channel  `json:"channel"`
	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	RecipientID   types.ID `json:"recipient_id"`
	RecipientType string   `json:"recipient_type"` // patient or doctor

	// Contact details resolved before dispatch
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // push endpoint

	Subject string         `json:"subject"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`

	SentAt *time.Time `json:"sent_at,omitempty"`

	RetryCount   int    `json:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PushSubscription is a browser push subscription stored per user
type PushSubscription struct {
	ID        types.ID  `json:"id"`
	UserID    types.ID  `json:"user_id"`
	UserType  string    `json:"user_type"`
	Endpoint  string    `json:"endpoint"`
	P256DHKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}

// generateNotificationID generates a unique notification ID
func generateNotificationID() string {
	return uuid.New().String()
}

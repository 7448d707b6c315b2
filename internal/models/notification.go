// internal/models/notification.go
package models

import (
	"github.com/google/uuid"
)

// Notification is append-only except the is_read flip, which is monotonic and
// idempotent. The persisted row is the authoritative copy; the realtime push
// is a latency optimization only.
type Notification struct {
	BaseModel
	UserID  uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	Type    NotificationType `json:"type" gorm:"type:varchar(50);not null;index"`
	Message string           `json:"message" gorm:"type:text;not null"`
	Link    string           `json:"link,omitempty" gorm:"size:512"`
	IsRead  bool             `json:"is_read" gorm:"default:false;index"`
}

// Message is one entry of a per-request conversation. The receiver is always
// the counterparty of the sender on the request.
type Message struct {
	BaseModel
	RequestID  uuid.UUID `json:"request_id" gorm:"type:uuid;not null;index"`
	SenderID   uuid.UUID `json:"sender_id" gorm:"type:uuid;not null;index"`
	ReceiverID uuid.UUID `json:"receiver_id" gorm:"type:uuid;not null;index"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	IsRead     bool      `json:"is_read" gorm:"default:false"`

	Sender User `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
}

// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type NotificationType string

const (
	NotificationTypeInterestReceived  NotificationType = "interest_received"
	NotificationTypeTermsProposed     NotificationType = "terms_proposed"
	NotificationTypeTermsAccepted     NotificationType = "terms_accepted"
	NotificationTypeInterestWithdrawn NotificationType = "interest_withdrawn"
	NotificationTypeInterestDeclined  NotificationType = "interest_declined"
	NotificationTypePaymentCompleted  NotificationType = "payment_completed"
	NotificationTypePaymentFailed     NotificationType = "payment_failed"
	NotificationTypeTransferUpdated   NotificationType = "transfer_updated"
	NotificationTypeSaleCompleted     NotificationType = "sale_completed"
	NotificationTypeNewMessage        NotificationType = "new_message"
)

// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is the ledger row for one settled payment. Rows are immutable
// once written; the unique index on payment_intent_id is the idempotency key
// against duplicate webhook deliveries.
type Transaction struct {
	BaseModel
	RequestID            uuid.UUID `json:"request_id" gorm:"type:uuid;not null;index"`
	ProjectID            uuid.UUID `json:"project_id" gorm:"type:uuid;not null;index"`
	BuyerID              uuid.UUID `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID             uuid.UUID `json:"seller_id" gorm:"type:uuid;not null;index"`
	PaymentIntentID      string    `json:"payment_intent_id" gorm:"size:255;not null;uniqueIndex"`
	ChargeID             string    `json:"charge_id" gorm:"size:255"`
	AmountTotal          float64   `json:"amount_total" gorm:"type:decimal(10,2);not null"`
	AmountPlatformFee    float64   `json:"amount_platform_fee" gorm:"type:decimal(10,2);not null"`
	AmountSellerReceived float64   `json:"amount_seller_received" gorm:"type:decimal(10,2);not null"`
	Currency             string    `json:"currency" gorm:"size:10;default:'usd'"`
	SettledAt            time.Time `json:"settled_at"`

	Request PurchaseRequest `json:"request,omitempty" gorm:"foreignKey:RequestID"`
	Project Project         `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	Buyer   User            `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller  User            `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}

// Certificate is the verifiable proof of sale issued once per Transaction.
// Immutable except LastVerifiedAt, which is stamped on every public lookup.
type Certificate struct {
	BaseModel
	TransactionID    uuid.UUID  `json:"transaction_id" gorm:"type:uuid;not null;uniqueIndex"`
	RequestID        uuid.UUID  `json:"request_id" gorm:"type:uuid;not null;index"`
	SellerID         uuid.UUID  `json:"seller_id" gorm:"type:uuid;not null;index"`
	BuyerID          uuid.UUID  `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SaleAmount       float64    `json:"sale_amount" gorm:"type:decimal(10,2);not null"`
	VerificationCode string     `json:"verification_code" gorm:"size:32;uniqueIndex;not null"`
	IssuedAt         time.Time  `json:"issued_at"`
	LastVerifiedAt   *time.Time `json:"last_verified_at,omitempty"`

	Transaction Transaction `json:"transaction,omitempty" gorm:"foreignKey:TransactionID"`
}

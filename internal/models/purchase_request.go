// internal/models/purchase_request.go
package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
)

// RequestStatus is the closed set of purchase-request states. A request only
// ever moves forward along requestTransitions, never backward.
type RequestStatus string

const (
	StatusInterestExpressed RequestStatus = "interest_expressed"
	StatusTermsProposed     RequestStatus = "terms_proposed"
	// Canonical pre-payment state for both the negotiated and buy-now paths.
	StatusAgreementReached          RequestStatus = "agreement_reached_pending_payment"
	StatusPaymentProcessing         RequestStatus = "payment_processing"
	StatusPaymentCompleted          RequestStatus = "payment_completed_pending_transfer"
	StatusTransferInProgress        RequestStatus = "transfer_in_progress"
	StatusAssetsTransferred         RequestStatus = "assets_transferred_pending_confirmation"
	StatusCompleted                 RequestStatus = "completed"
	StatusSellerDeclinedInterest    RequestStatus = "seller_declined_interest"
	StatusBuyerWithdrewInterest     RequestStatus = "buyer_withdrew_interest"
	StatusSellerRejected            RequestStatus = "seller_rejected"
	StatusPaymentFailed             RequestStatus = "payment_failed"
	StatusAbortedProjectUnavailable RequestStatus = "aborted_project_unavailable"
)

// requestTransitions maps each state to the set of states reachable from it.
// Terminal states have no entry.
var requestTransitions = map[RequestStatus][]RequestStatus{
	StatusInterestExpressed: {
		StatusTermsProposed,
		StatusSellerDeclinedInterest,
		StatusBuyerWithdrewInterest,
		StatusAbortedProjectUnavailable,
	},
	StatusTermsProposed: {
		StatusAgreementReached,
		StatusSellerRejected,
		StatusBuyerWithdrewInterest,
		StatusSellerDeclinedInterest,
		StatusAbortedProjectUnavailable,
	},
	StatusAgreementReached: {
		StatusPaymentProcessing,
		StatusPaymentCompleted,
		StatusPaymentFailed,
		StatusAbortedProjectUnavailable,
	},
	StatusPaymentProcessing: {
		StatusPaymentCompleted,
		StatusPaymentFailed,
	},
	StatusPaymentCompleted: {
		StatusTransferInProgress,
		StatusAssetsTransferred,
		StatusCompleted,
	},
	StatusTransferInProgress: {
		StatusTransferInProgress,
		StatusAssetsTransferred,
	},
	StatusAssetsTransferred: {
		StatusCompleted,
	},
}

func (s RequestStatus) IsTerminal() bool {
	_, ok := requestTransitions[s]
	return !ok
}

func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, t := range requestTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionSources returns every state from which target is reachable. Used
// to build the status predicate of a guarded UPDATE.
func TransitionSources(target RequestStatus) []RequestStatus {
	var sources []RequestStatus
	for from, targets := range requestTransitions {
		for _, t := range targets {
			if t == target {
				sources = append(sources, from)
				break
			}
		}
	}
	return sources
}

// NonTerminalStatuses returns the states that count as an active request for
// the one-active-request-per-(project,buyer) rule.
func NonTerminalStatuses() []RequestStatus {
	statuses := make([]RequestStatus, 0, len(requestTransitions))
	for s := range requestTransitions {
		statuses = append(statuses, s)
	}
	return statuses
}

// SellerCommitments is the structured record of what the seller promises
// beyond the asset handoff itself.
type SellerCommitments struct {
	SupportPeriodDays int    `json:"support_period_days" validate:"min=0"`
	HandoverCall      bool   `json:"handover_call"`
	TrainingSessions  int    `json:"training_sessions" validate:"min=0"`
	AdditionalTerms   string `json:"additional_terms,omitempty"`
}

func (c SellerCommitments) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *SellerCommitments) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// TransferableAsset is one line of the agreed asset list.
type TransferableAsset struct {
	ID       string `json:"id" validate:"required"`
	Included bool   `json:"included"`
	Notes    string `json:"notes,omitempty"`
}

type AssetList []TransferableAsset

func (a AssetList) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func (a *AssetList) Scan(value interface{}) error {
	return scanJSON(value, a)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
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
	return json.Unmarshal(bytes, dest)
}

type PurchaseRequest struct {
	BaseModel
	ProjectID         uuid.UUID         `json:"project_id" gorm:"type:uuid;not null;index"`
	BuyerID           uuid.UUID         `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID          uuid.UUID         `json:"seller_id" gorm:"type:uuid;not null;index"`
	Status            RequestStatus     `json:"status" gorm:"type:varchar(50);not null;index"`
	OfferAmount       float64           `json:"offer_amount" gorm:"type:decimal(10,2)"`
	AgreedAmount      float64           `json:"agreed_amount" gorm:"type:decimal(10,2)"`
	BuyerMessage      string            `json:"buyer_message,omitempty" gorm:"type:text"`
	Commitments       SellerCommitments `json:"commitments" gorm:"type:jsonb"`
	Assets            AssetList         `json:"assets" gorm:"type:jsonb"`
	FinalAgreement    string            `json:"final_agreement,omitempty" gorm:"type:text"`
	DigitalSignature  string            `json:"digital_signature,omitempty" gorm:"size:255"`
	PaymentIntentID   string            `json:"payment_intent_id,omitempty" gorm:"size:255;index"`
	CheckoutSessionID string            `json:"checkout_session_id,omitempty" gorm:"size:255"`
	TransferNotes     string            `json:"transfer_notes,omitempty" gorm:"type:text"`

	Project Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	Buyer   User    `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller  User    `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}

// OtherParty resolves the counterparty of a given user on this request.
func (r *PurchaseRequest) OtherParty(userID uuid.UUID) uuid.UUID {
	if userID == r.BuyerID {
		return r.SellerID
	}
	return r.BuyerID
}

func (r *PurchaseRequest) IsParty(userID uuid.UUID) bool {
	return userID == r.BuyerID || userID == r.SellerID
}

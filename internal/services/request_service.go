// internal/services/request_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/config"
	"github.com/devmarket/devmarket-backend/internal/database"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/payments"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

// RequestService owns the PurchaseRequest entity and every buyer/seller
// initiated transition. Each transition is a single conditional UPDATE guarded
// by the expected current status; zero affected rows means a concurrent
// transition won and is reported as a conflict with the fresh status.
type RequestService struct {
	db            *gorm.DB
	config        *config.Config
	gateway       payments.Gateway
	notifications *NotificationService
}

type ExpressInterestRequest struct {
	OfferAmount float64 `json:"offer_amount" validate:"omitempty,min=0.01"`
	Message     string  `json:"message,omitempty" validate:"max=2000"`
}

type ProposeTermsRequest struct {
	AgreedAmount float64                    `json:"agreed_amount" validate:"required,min=0.01"`
	Commitments  models.SellerCommitments   `json:"commitments"`
	Assets       []models.TransferableAsset `json:"assets" validate:"required,min=1,dive"`
	Message      string                     `json:"message,omitempty" validate:"max=2000"`
}

type AcceptTermsRequest struct {
	FinalAgreement   string `json:"final_agreement" validate:"required"`
	DigitalSignature string `json:"digital_signature" validate:"required,min=2,max=255"`
}

type CloseRequestRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=2000"`
}

type CheckoutResult struct {
	Request     *models.PurchaseRequest `json:"request"`
	CheckoutURL string                  `json:"checkout_url,omitempty"`
	SessionID   string                  `json:"session_id,omitempty"`
}

func NewRequestService(db *gorm.DB, cfg *config.Config, gateway payments.Gateway, notifications *NotificationService) *RequestService {
	return &RequestService{
		db:            db,
		config:        cfg,
		gateway:       gateway,
		notifications: notifications,
	}
}

// ExpressInterest opens a purchase request in interest_expressed. Fails when
// the buyer is the seller, the project is not for sale, or the buyer already
// holds a non-terminal request for the project.
func (s *RequestService) ExpressInterest(projectID, buyerID uuid.UUID, req *ExpressInterestRequest) (*models.PurchaseRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewValidation("invalid interest request: %v", err)
	}

	project, err := s.loadProject(projectID)
	if err != nil {
		return nil, err
	}

	if project.OwnerID == buyerID {
		return nil, apperrors.NewValidation("cannot express interest in your own project")
	}
	if !project.IsForSale {
		return nil, apperrors.NewConflict("project is not for sale", "")
	}

	offer := req.OfferAmount
	if offer == 0 {
		offer = project.Price
	}

	request := &models.PurchaseRequest{
		ProjectID:    projectID,
		BuyerID:      buyerID,
		SellerID:     project.OwnerID,
		Status:       models.StatusInterestExpressed,
		OfferAmount:  offer,
		BuyerMessage: req.Message,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.ensureNoActiveRequest(tx, projectID, buyerID); err != nil {
			return err
		}
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("failed to create purchase request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyCounterparty(request, project.OwnerID, models.NotificationTypeInterestReceived,
		fmt.Sprintf("A buyer expressed interest in %q", project.Title))

	return request, nil
}

// ProposeTerms is a seller action, valid only from interest_expressed.
func (s *RequestService) ProposeTerms(requestID, sellerID uuid.UUID, req *ProposeTermsRequest) (*models.PurchaseRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewValidation("invalid terms: %v", err)
	}

	request, err := s.loadRequestForParty(requestID, sellerID)
	if err != nil {
		return nil, err
	}
	if request.SellerID != sellerID {
		return nil, apperrors.NewValidation("only the seller can propose terms")
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.transition(tx, requestID,
			[]models.RequestStatus{models.StatusInterestExpressed},
			models.StatusTermsProposed,
			map[string]interface{}{
				"agreed_amount": req.AgreedAmount,
				"commitments":   req.Commitments,
				"assets":        models.AssetList(req.Assets),
			})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCounterparty(request, request.BuyerID, models.NotificationTypeTermsProposed,
		"The seller proposed terms for your purchase request")

	return s.reload(requestID)
}

// AcceptTerms is a buyer action, valid only from terms_proposed. The digital
// signature must be non-empty.
func (s *RequestService) AcceptTerms(requestID, buyerID uuid.UUID, req *AcceptTermsRequest) (*models.PurchaseRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewValidation("invalid acceptance: %v", err)
	}
	if strings.TrimSpace(req.DigitalSignature) == "" {
		return nil, apperrors.NewValidation("digital signature must not be empty")
	}

	request, err := s.loadRequestForParty(requestID, buyerID)
	if err != nil {
		return nil, err
	}
	if request.BuyerID != buyerID {
		return nil, apperrors.NewValidation("only the buyer can accept terms")
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.transition(tx, requestID,
			[]models.RequestStatus{models.StatusTermsProposed},
			models.StatusAgreementReached,
			map[string]interface{}{
				"final_agreement":   req.FinalAgreement,
				"digital_signature": req.DigitalSignature,
			})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCounterparty(request, request.SellerID, models.NotificationTypeTermsAccepted,
		"The buyer accepted your terms; awaiting payment")

	return s.reload(requestID)
}

// WithdrawInterest is a buyer action, valid only during negotiation, not
// after payment begins.
func (s *RequestService) WithdrawInterest(requestID, buyerID uuid.UUID, req *CloseRequestRequest) (*models.PurchaseRequest, error) {
	request, err := s.loadRequestForParty(requestID, buyerID)
	if err != nil {
		return nil, err
	}
	if request.BuyerID != buyerID {
		return nil, apperrors.NewValidation("only the buyer can withdraw interest")
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.transition(tx, requestID,
			[]models.RequestStatus{models.StatusInterestExpressed, models.StatusTermsProposed},
			models.StatusBuyerWithdrewInterest,
			map[string]interface{}{"transfer_notes": req.Reason})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCounterparty(request, request.SellerID, models.NotificationTypeInterestWithdrawn,
		"The buyer withdrew their purchase request")

	return s.reload(requestID)
}

// DeclineInterest is a seller action, valid only during negotiation. Declining
// at interest_expressed closes as seller_declined_interest; declining proposed
// terms closes as seller_rejected.
func (s *RequestService) DeclineInterest(requestID, sellerID uuid.UUID, req *CloseRequestRequest) (*models.PurchaseRequest, error) {
	request, err := s.loadRequestForParty(requestID, sellerID)
	if err != nil {
		return nil, err
	}
	if request.SellerID != sellerID {
		return nil, apperrors.NewValidation("only the seller can decline a request")
	}

	target := models.StatusSellerDeclinedInterest
	if request.Status == models.StatusTermsProposed {
		target = models.StatusSellerRejected
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.transition(tx, requestID,
			[]models.RequestStatus{request.Status},
			target,
			map[string]interface{}{"transfer_notes": req.Reason})
	})
	if err != nil {
		return nil, err
	}

	s.notifyCounterparty(request, request.BuyerID, models.NotificationTypeInterestDeclined,
		"The seller declined your purchase request")

	return s.reload(requestID)
}

// InitiateCheckout advances an agreed request to payment_processing after
// obtaining a checkout session. Re-invocation while a session is already in
// flight returns the existing session instead of creating a duplicate.
func (s *RequestService) InitiateCheckout(requestID, buyerID uuid.UUID) (*CheckoutResult, error) {
	request, err := s.loadRequestForParty(requestID, buyerID)
	if err != nil {
		return nil, err
	}
	if request.BuyerID != buyerID {
		return nil, apperrors.NewValidation("only the buyer can start checkout")
	}

	return s.checkout(request)
}

// BuyNow is the negotiation-skipping shortcut: it creates the request directly
// in the canonical pre-payment state and starts checkout. Idempotent per
// (project, buyer): an existing pre-payment request is reused.
func (s *RequestService) BuyNow(projectID, buyerID uuid.UUID) (*CheckoutResult, error) {
	project, err := s.loadProject(projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID == buyerID {
		return nil, apperrors.NewValidation("cannot buy your own project")
	}
	if !project.IsForSale {
		return nil, apperrors.NewConflict("project is not for sale", "")
	}

	var request *models.PurchaseRequest
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var existing models.PurchaseRequest
		err := tx.Where("project_id = ? AND buyer_id = ? AND status IN ?",
			projectID, buyerID, models.NonTerminalStatuses()).
			First(&existing).Error
		if err == nil {
			switch existing.Status {
			case models.StatusAgreementReached, models.StatusPaymentProcessing:
				request = &existing
				return nil
			default:
				return apperrors.NewConflict(
					"an active purchase request already exists for this project",
					string(existing.Status))
			}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("database error: %w", err)
		}

		request = &models.PurchaseRequest{
			ProjectID:    projectID,
			BuyerID:      buyerID,
			SellerID:     project.OwnerID,
			Status:       models.StatusAgreementReached,
			OfferAmount:  project.Price,
			AgreedAmount: project.Price,
			Assets:       models.AssetList{{ID: "full_project", Included: true}},
		}
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("failed to create purchase request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.checkout(request)
}

func (s *RequestService) checkout(request *models.PurchaseRequest) (*CheckoutResult, error) {
	// A session is already in flight; hand it back instead of minting another.
	if request.Status == models.StatusPaymentProcessing && request.CheckoutSessionID != "" {
		return &CheckoutResult{Request: request, SessionID: request.CheckoutSessionID}, nil
	}
	if request.Status != models.StatusAgreementReached && request.Status != models.StatusPaymentProcessing {
		return nil, apperrors.NewConflict("request is not ready for checkout", string(request.Status))
	}

	project, err := s.loadProject(request.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.IsForSale {
		// The project was withdrawn between request creation and checkout.
		_ = database.WithTransaction(s.db, func(tx *gorm.DB) error {
			return s.transition(tx, request.ID,
				[]models.RequestStatus{models.StatusAgreementReached, models.StatusPaymentProcessing},
				models.StatusAbortedProjectUnavailable, nil)
		})
		return nil, apperrors.NewConflict("project is no longer available",
			string(models.StatusAbortedProjectUnavailable))
	}

	amount := request.AgreedAmount
	if amount == 0 {
		amount = project.Price
	}

	session, err := s.gateway.CreateCheckoutSession(&payments.CheckoutParams{
		RequestID:    request.ID.String(),
		ProjectTitle: project.Title,
		Amount:       amount,
		Currency:     s.config.Payment.Currency,
		SuccessURL:   s.config.Frontend.BaseURL + "/requests/" + request.ID.String() + "?checkout=success",
		CancelURL:    s.config.Frontend.BaseURL + "/requests/" + request.ID.String() + "?checkout=cancelled",
	})
	if err != nil {
		// The request stays in its prior pending state; checkout creation is
		// idempotent per non-terminal request, so the caller can retry.
		return nil, apperrors.NewExternal("payment gateway", err)
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		return s.transition(tx, request.ID,
			[]models.RequestStatus{models.StatusAgreementReached, models.StatusPaymentProcessing},
			models.StatusPaymentProcessing,
			map[string]interface{}{
				"checkout_session_id": session.ID,
				"payment_intent_id":   session.PaymentIntentID,
				"agreed_amount":       amount,
			})
	})
	if err != nil {
		return nil, err
	}

	reloaded, err := s.reload(request.ID)
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		Request:     reloaded,
		CheckoutURL: session.URL,
		SessionID:   session.ID,
	}, nil
}

// GetRequest returns the request to one of its parties; anyone else gets the
// same not-found as a missing id.
func (s *RequestService) GetRequest(requestID, callerID uuid.UUID) (*models.PurchaseRequest, error) {
	var request models.PurchaseRequest
	err := s.db.Preload("Project").Preload("Buyer").Preload("Seller").
		First(&request, "id = ?", requestID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("request")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !request.IsParty(callerID) {
		return nil, apperrors.NewNotFound("request")
	}

	return &request, nil
}

func (s *RequestService) ListRequests(callerID uuid.UUID, role string, params utils.PaginationParams) ([]models.PurchaseRequest, int64, error) {
	query := s.db.Model(&models.PurchaseRequest{}).Preload("Project")

	switch role {
	case "buyer":
		query = query.Where("buyer_id = ?", callerID)
	case "seller":
		query = query.Where("seller_id = ?", callerID)
	default:
		query = query.Where("buyer_id = ? OR seller_id = ?", callerID, callerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "status"})
	query = utils.ApplyPagination(query, params)

	var requests []models.PurchaseRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch requests: %w", err)
	}

	return requests, total, nil
}

// transition applies one guarded state change: UPDATE ... WHERE id = ? AND
// status IN (from). Zero affected rows means the stored status is not in the
// source set; the fresh status is reported so the caller can retry.
func (s *RequestService) transition(tx *gorm.DB, requestID uuid.UUID, from []models.RequestStatus, to models.RequestStatus, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	result := tx.Model(&models.PurchaseRequest{}).
		Where("id = ? AND status IN ?", requestID, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update request: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var current models.PurchaseRequest
		if err := tx.Select("status").First(&current, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("request")
			}
			return fmt.Errorf("database error: %w", err)
		}
		return apperrors.NewConflict(
			fmt.Sprintf("request cannot move to %s", to), string(current.Status))
	}

	return nil
}

func (s *RequestService) ensureNoActiveRequest(tx *gorm.DB, projectID, buyerID uuid.UUID) error {
	var existing models.PurchaseRequest
	err := tx.Where("project_id = ? AND buyer_id = ? AND status IN ?",
		projectID, buyerID, models.NonTerminalStatuses()).
		First(&existing).Error
	if err == nil {
		return apperrors.NewConflict(
			"an active purchase request already exists for this project",
			string(existing.Status))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

func (s *RequestService) loadProject(projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("project")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &project, nil
}

func (s *RequestService) loadRequestForParty(requestID, userID uuid.UUID) (*models.PurchaseRequest, error) {
	var request models.PurchaseRequest
	if err := s.db.First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("request")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !request.IsParty(userID) {
		return nil, apperrors.NewNotFound("request")
	}

	return &request, nil
}

func (s *RequestService) reload(requestID uuid.UUID) (*models.PurchaseRequest, error) {
	var request models.PurchaseRequest
	if err := s.db.First(&request, "id = ?", requestID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}
	return &request, nil
}

// notifyCounterparty raises the post-transition notification. Fire-and-forget
// relative to the committed transition.
func (s *RequestService) notifyCounterparty(request *models.PurchaseRequest, userID uuid.UUID, ntype models.NotificationType, message string) {
	link := "/requests/" + request.ID.String()
	if err := s.notifications.Notify(userID, ntype, message, link); err != nil {
		logrus.WithError(err).WithField("request_id", request.ID).
			Warn("Failed to notify counterparty; transition stands")
	}
}

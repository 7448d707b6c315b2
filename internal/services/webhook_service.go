// internal/services/webhook_service.go
package services

import (
	"errors"
	"fmt"
	"math"
	"time"

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

// paymentSettledStatuses are the states at or past payment completion. A
// webhook arriving for a request already in one of these is a duplicate
// delivery and must be answered as success with no further effect.
var paymentSettledStatuses = []models.RequestStatus{
	models.StatusPaymentCompleted,
	models.StatusTransferInProgress,
	models.StatusAssetsTransferred,
	models.StatusCompleted,
}

// WebhookService turns the asynchronous, possibly-duplicated payment-provider
// event stream into exactly-once ledger and state effects. The unique index
// on the ledger's payment_intent_id is the last line of defense: under
// concurrent duplicate deliveries the losing insert aborts its whole
// transaction, which is treated as already-applied success.
type WebhookService struct {
	db            *gorm.DB
	config        *config.Config
	gateway       payments.Gateway
	certificates  *CertificateService
	notifications *NotificationService
}

func NewWebhookService(db *gorm.DB, cfg *config.Config, gateway payments.Gateway,
	certificates *CertificateService, notifications *NotificationService) *WebhookService {
	return &WebhookService{
		db:            db,
		config:        cfg,
		gateway:       gateway,
		certificates:  certificates,
		notifications: notifications,
	}
}

// HandleEvent processes one raw provider delivery. Error classes map to the
// provider contract: ValidationError/NotFoundError are non-retryable,
// ErrIdempotentNoop is success, ExternalServiceError and anything unexpected
// warrant a provider retry.
func (s *WebhookService) HandleEvent(payload []byte, signatureHeader string) error {
	event, err := s.gateway.ParseWebhookEvent(payload, signatureHeader)
	if err != nil {
		return apperrors.NewValidation("rejected webhook payload: %v", err)
	}

	log := logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	switch event.Type {
	case payments.EventCheckoutCompleted, payments.EventPaymentSucceeded:
		return s.reconcilePayment(event, log)
	case payments.EventPaymentFailed:
		return s.markPaymentFailed(event, log)
	default:
		log.Debug("Ignoring unhandled webhook event type")
		return nil
	}
}

func (s *WebhookService) reconcilePayment(event *payments.WebhookEvent, log *logrus.Entry) error {
	requestID, err := s.requestIDFromEvent(event)
	if err != nil {
		return err
	}

	request, err := s.loadRequest(requestID)
	if err != nil {
		return err
	}

	// Duplicate delivery: the effect is already applied.
	if statusIn(request.Status, paymentSettledStatuses) {
		log.WithField("request_id", requestID).Info("Duplicate payment webhook; already settled")
		return apperrors.ErrIdempotentNoop
	}

	paymentIntentID := event.PaymentIntentID
	if paymentIntentID == "" {
		paymentIntentID = request.PaymentIntentID
	}
	if paymentIntentID == "" {
		return apperrors.NewValidation("webhook event carries no payment intent id")
	}

	// Never trust webhook-supplied amounts; re-fetch the authoritative charge.
	detail, err := s.gateway.GetPaymentDetail(paymentIntentID)
	if err != nil {
		return apperrors.NewExternal("payment gateway", err)
	}

	total := detail.AmountTotal
	fee := roundCents(total * s.config.Payment.PlatformFeePercent / 100)
	sellerNet := roundCents(total - fee)

	transaction := &models.Transaction{
		RequestID:            request.ID,
		ProjectID:            request.ProjectID,
		BuyerID:              request.BuyerID,
		SellerID:             request.SellerID,
		PaymentIntentID:      detail.PaymentIntentID,
		ChargeID:             detail.ChargeID,
		AmountTotal:          total,
		AmountPlatformFee:    fee,
		AmountSellerReceived: sellerNet,
		Currency:             detail.Currency,
		SettledAt:            time.Now(),
	}

	var certificate *models.Certificate
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := s.advanceToSettled(tx, request.ID, detail.PaymentIntentID); err != nil {
			return err
		}

		if err := tx.Create(transaction).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// A concurrent delivery already wrote this ledger row; our
				// whole transaction rolls back and the event counts as applied.
				return apperrors.ErrIdempotentNoop
			}
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		certificate, err = s.certificates.Issue(tx, transaction)
		if err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrIdempotentNoop) {
			log.WithField("request_id", requestID).Info("Payment webhook already applied")
		}
		return err
	}

	log.WithFields(logrus.Fields{
		"request_id":     requestID,
		"transaction_id": transaction.ID,
		"certificate_id": certificate.ID,
		"amount_total":   total,
	}).Info("Payment settled")

	s.notifyParties(request, total)
	return nil
}

func (s *WebhookService) markPaymentFailed(event *payments.WebhookEvent, log *logrus.Entry) error {
	requestID, err := s.requestIDFromEvent(event)
	if err != nil {
		return err
	}

	request, err := s.loadRequest(requestID)
	if err != nil {
		return err
	}

	if request.Status.IsTerminal() || statusIn(request.Status, paymentSettledStatuses) {
		return apperrors.ErrIdempotentNoop
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.PurchaseRequest{}).
			Where("id = ? AND status IN ?", requestID,
				[]models.RequestStatus{models.StatusAgreementReached, models.StatusPaymentProcessing}).
			Update("status", models.StatusPaymentFailed)
		if result.Error != nil {
			return fmt.Errorf("failed to update request: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrIdempotentNoop
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.WithField("request_id", requestID).Info("Payment failed")

	if err := s.notifications.Notify(request.BuyerID, models.NotificationTypePaymentFailed,
		"Your payment could not be completed", "/requests/"+request.ID.String()); err != nil {
		logrus.WithError(err).Warn("Failed to send payment-failed notification")
	}
	return nil
}

// advanceToSettled is the single payment-completion transition, guarded by
// the pre-payment source states.
func (s *WebhookService) advanceToSettled(tx *gorm.DB, requestID uuid.UUID, paymentIntentID string) error {
	result := tx.Model(&models.PurchaseRequest{}).
		Where("id = ? AND status IN ?", requestID,
			[]models.RequestStatus{models.StatusAgreementReached, models.StatusPaymentProcessing}).
		Updates(map[string]interface{}{
			"status":            models.StatusPaymentCompleted,
			"payment_intent_id": paymentIntentID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update request: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var current models.PurchaseRequest
		if err := tx.Select("status").First(&current, "id = ?", requestID).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if statusIn(current.Status, paymentSettledStatuses) {
			return apperrors.ErrIdempotentNoop
		}
		return apperrors.NewConflict("request is not awaiting payment", string(current.Status))
	}

	return nil
}

func (s *WebhookService) requestIDFromEvent(event *payments.WebhookEvent) (uuid.UUID, error) {
	if event.RequestID == "" {
		return uuid.Nil, apperrors.NewValidation("webhook event carries no purchase_request_id metadata")
	}

	requestID, err := uuid.Parse(event.RequestID)
	if err != nil {
		return uuid.Nil, apperrors.NewValidation("malformed purchase_request_id metadata: %v", err)
	}

	return requestID, nil
}

func (s *WebhookService) loadRequest(requestID uuid.UUID) (*models.PurchaseRequest, error) {
	var request models.PurchaseRequest
	if err := s.db.First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("request")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &request, nil
}

func (s *WebhookService) notifyParties(request *models.PurchaseRequest, amount float64) {
	link := "/requests/" + request.ID.String()

	if err := s.notifications.Notify(request.SellerID, models.NotificationTypePaymentCompleted,
		fmt.Sprintf("Payment of $%.2f received; please begin the asset transfer", amount),
		link); err != nil {
		logrus.WithError(err).Warn("Failed to send seller payment notification")
	}

	if err := s.notifications.Notify(request.BuyerID, models.NotificationTypePaymentCompleted,
		"Your payment is complete; the seller will transfer the assets",
		link); err != nil {
		logrus.WithError(err).Warn("Failed to send buyer payment notification")
	}
}

// ListTransactions returns the caller's side of the ledger, newest first.
func (s *WebhookService) ListTransactions(userID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "amount_total"})
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}

func statusIn(status models.RequestStatus, set []models.RequestStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

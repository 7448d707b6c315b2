// internal/services/webhook_service_test.go
package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/payments"
)

type WebhookServiceTestSuite struct {
	suite.Suite
	db        *gorm.DB
	gateway   *fakeGateway
	publisher *capturePublisher
	service   *WebhookService

	seller  *models.User
	buyer   *models.User
	project *models.Project
	request *models.PurchaseRequest
}

func (suite *WebhookServiceTestSuite) SetupTest() {
	suite.db = setupTestDB(suite.T())
	suite.gateway = &fakeGateway{}
	suite.publisher = &capturePublisher{}

	notifications := NewNotificationService(suite.db, suite.publisher)
	certificates := NewCertificateService(suite.db)
	suite.service = NewWebhookService(suite.db, testConfig(), suite.gateway, certificates, notifications)

	suite.seller = createTestUser(suite.T(), suite.db, "seller")
	suite.buyer = createTestUser(suite.T(), suite.db, "buyer")
	suite.project = createTestProject(suite.T(), suite.db, suite.seller.ID, 100.00)
	suite.request = seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusPaymentProcessing)
}

func (suite *WebhookServiceTestSuite) deliver(eventType, requestID, paymentIntentID string) error {
	suite.gateway.event = &payments.WebhookEvent{
		ID:              "evt_" + uuid.NewString(),
		Type:            eventType,
		PaymentIntentID: paymentIntentID,
		RequestID:       requestID,
	}
	return suite.service.HandleEvent([]byte(`{}`), "sig")
}

func (suite *WebhookServiceTestSuite) TestPaymentSucceededSettlesRequest() {
	err := suite.deliver(payments.EventCheckoutCompleted, suite.request.ID.String(), "pi_settle_1")
	suite.Require().NoError(err)

	suite.Equal(models.StatusPaymentCompleted, requestStatus(suite.T(), suite.db, suite.request.ID))

	// Ledger row with the 5% platform fee split on the authoritative $100.
	var transaction models.Transaction
	suite.Require().NoError(suite.db.First(&transaction, "request_id = ?", suite.request.ID).Error)
	suite.Equal("pi_settle_1", transaction.PaymentIntentID)
	suite.Equal(100.00, transaction.AmountTotal)
	suite.Equal(5.00, transaction.AmountPlatformFee)
	suite.Equal(95.00, transaction.AmountSellerReceived)

	// Certificate issued in the same transaction.
	var certificate models.Certificate
	suite.Require().NoError(suite.db.First(&certificate, "transaction_id = ?", transaction.ID).Error)
	suite.Len(certificate.VerificationCode, 32)
	suite.Equal(100.00, certificate.SaleAmount)

	// Both parties are notified.
	var count int64
	suite.db.Model(&models.Notification{}).
		Where("type = ?", models.NotificationTypePaymentCompleted).
		Count(&count)
	suite.Equal(int64(2), count)
}

func (suite *WebhookServiceTestSuite) TestFeeRounding() {
	suite.gateway.detail = &payments.PaymentDetail{
		PaymentIntentID: "pi_round_1",
		ChargeID:        "ch_round_1",
		AmountTotal:     99.99,
		Currency:        "usd",
		Status:          "succeeded",
	}

	err := suite.deliver(payments.EventPaymentSucceeded, suite.request.ID.String(), "pi_round_1")
	suite.Require().NoError(err)

	var transaction models.Transaction
	suite.Require().NoError(suite.db.First(&transaction, "request_id = ?", suite.request.ID).Error)
	suite.Equal(5.00, transaction.AmountPlatformFee)
	suite.Equal(94.99, transaction.AmountSellerReceived)
}

func (suite *WebhookServiceTestSuite) TestRedeliveryIsNoop() {
	suite.Require().NoError(suite.deliver(payments.EventPaymentSucceeded, suite.request.ID.String(), "pi_dup_1"))

	err := suite.deliver(payments.EventPaymentSucceeded, suite.request.ID.String(), "pi_dup_1")
	suite.True(errors.Is(err, apperrors.ErrIdempotentNoop))

	// Exactly one ledger row and one certificate.
	var transactions, certificates int64
	suite.db.Model(&models.Transaction{}).Count(&transactions)
	suite.db.Model(&models.Certificate{}).Count(&certificates)
	suite.Equal(int64(1), transactions)
	suite.Equal(int64(1), certificates)
}

func (suite *WebhookServiceTestSuite) TestDuplicateIntentAcrossRequestsRollsBack() {
	suite.Require().NoError(suite.deliver(payments.EventPaymentSucceeded, suite.request.ID.String(), "pi_shared"))

	// A second request claiming the same payment intent must not settle.
	other := createTestUser(suite.T(), suite.db, "other-buyer")
	second := seedRequest(suite.T(), suite.db, suite.project, other.ID, models.StatusPaymentProcessing)

	err := suite.deliver(payments.EventPaymentSucceeded, second.ID.String(), "pi_shared")
	suite.True(errors.Is(err, apperrors.ErrIdempotentNoop))

	// The guarded status update rolled back with the failed insert.
	suite.Equal(models.StatusPaymentProcessing, requestStatus(suite.T(), suite.db, second.ID))

	var transactions int64
	suite.db.Model(&models.Transaction{}).Count(&transactions)
	suite.Equal(int64(1), transactions)
}

func (suite *WebhookServiceTestSuite) TestRejectedSignature() {
	suite.gateway.parseErr = errors.New("signature mismatch")

	err := suite.service.HandleEvent([]byte(`{}`), "bad-sig")
	suite.True(apperrors.IsValidation(err))
}

func (suite *WebhookServiceTestSuite) TestMissingMetadata() {
	err := suite.deliver(payments.EventPaymentSucceeded, "", "pi_x")
	suite.True(apperrors.IsValidation(err))
}

func (suite *WebhookServiceTestSuite) TestMalformedMetadata() {
	err := suite.deliver(payments.EventPaymentSucceeded, "not-a-uuid", "pi_x")
	suite.True(apperrors.IsValidation(err))
}

func (suite *WebhookServiceTestSuite) TestUnknownRequest() {
	err := suite.deliver(payments.EventPaymentSucceeded, uuid.NewString(), "pi_x")
	suite.True(apperrors.IsNotFound(err))
}

func (suite *WebhookServiceTestSuite) TestGatewayOutageLeavesRequestPending() {
	suite.gateway.detailErr = errors.New("gateway unavailable")

	err := suite.deliver(payments.EventPaymentSucceeded, suite.request.ID.String(), "pi_outage")
	suite.True(apperrors.IsExternal(err))

	suite.Equal(models.StatusPaymentProcessing, requestStatus(suite.T(), suite.db, suite.request.ID))

	var transactions int64
	suite.db.Model(&models.Transaction{}).Count(&transactions)
	suite.Equal(int64(0), transactions)
}

func (suite *WebhookServiceTestSuite) TestUnhandledEventTypeIgnored() {
	err := suite.deliver("charge.refunded", suite.request.ID.String(), "pi_x")
	suite.NoError(err)
	suite.Equal(models.StatusPaymentProcessing, requestStatus(suite.T(), suite.db, suite.request.ID))
}

func (suite *WebhookServiceTestSuite) TestPaymentFailed() {
	err := suite.deliver(payments.EventPaymentFailed, suite.request.ID.String(), "pi_fail_1")
	suite.Require().NoError(err)

	suite.Equal(models.StatusPaymentFailed, requestStatus(suite.T(), suite.db, suite.request.ID))

	var count int64
	suite.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", suite.buyer.ID, models.NotificationTypePaymentFailed).
		Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *WebhookServiceTestSuite) TestPaymentFailedAfterSettlementIsNoop() {
	suite.Require().NoError(suite.deliver(payments.EventPaymentSucceeded, suite.request.ID.String(), "pi_late_1"))

	// A stale failure event must not regress the settled request.
	err := suite.deliver(payments.EventPaymentFailed, suite.request.ID.String(), "pi_late_1")
	suite.True(errors.Is(err, apperrors.ErrIdempotentNoop))
	suite.Equal(models.StatusPaymentCompleted, requestStatus(suite.T(), suite.db, suite.request.ID))
}

func (suite *WebhookServiceTestSuite) TestListTransactions() {
	suite.Require().NoError(suite.deliver(payments.EventPaymentSucceeded, suite.request.ID.String(), "pi_list_1"))

	forBuyer, total, err := suite.service.ListTransactions(suite.buyer.ID, testPagination())
	suite.Require().NoError(err)
	suite.Equal(int64(1), total)
	suite.Len(forBuyer, 1)

	stranger := createTestUser(suite.T(), suite.db, "stranger")
	forStranger, total, err := suite.service.ListTransactions(stranger.ID, testPagination())
	suite.Require().NoError(err)
	suite.Equal(int64(0), total)
	suite.Empty(forStranger)
}

func TestWebhookServiceSuite(t *testing.T) {
	suite.Run(t, new(WebhookServiceTestSuite))
}

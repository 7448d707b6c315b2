// internal/services/transfer_service_test.go
package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/models"
)

type TransferServiceTestSuite struct {
	suite.Suite
	db        *gorm.DB
	publisher *capturePublisher
	service   *TransferService

	seller  *models.User
	buyer   *models.User
	project *models.Project
}

func (suite *TransferServiceTestSuite) SetupTest() {
	suite.db = setupTestDB(suite.T())
	suite.publisher = &capturePublisher{}

	notifications := NewNotificationService(suite.db, suite.publisher)
	suite.service = NewTransferService(suite.db, notifications)

	suite.seller = createTestUser(suite.T(), suite.db, "seller")
	suite.buyer = createTestUser(suite.T(), suite.db, "buyer")
	suite.project = createTestProject(suite.T(), suite.db, suite.seller.ID, 100.00)
}

func (suite *TransferServiceTestSuite) TestSellerMarksTransferProgress() {
	request := seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusPaymentCompleted)

	updated, err := suite.service.UpdateTransferStatus(request.ID, suite.seller.ID, &UpdateTransferRequest{
		Status: models.StatusTransferInProgress,
		Notes:  "Repository invite sent",
	})
	suite.Require().NoError(err)
	suite.Equal(models.StatusTransferInProgress, updated.Status)
	suite.Equal("Repository invite sent", updated.TransferNotes)
}

func (suite *TransferServiceTestSuite) TestTransferProgressUpdatesRepeatable() {
	request := seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusTransferInProgress)

	// The seller can post progress updates while the handoff is ongoing.
	_, err := suite.service.UpdateTransferStatus(request.ID, suite.seller.ID, &UpdateTransferRequest{
		Status: models.StatusTransferInProgress,
		Notes:  "Domain transfer initiated",
	})
	suite.Require().NoError(err)

	updated, err := suite.service.UpdateTransferStatus(request.ID, suite.seller.ID, &UpdateTransferRequest{
		Status: models.StatusAssetsTransferred,
	})
	suite.Require().NoError(err)
	suite.Equal(models.StatusAssetsTransferred, updated.Status)
}

func (suite *TransferServiceTestSuite) TestBuyerCannotUpdateTransferStatus() {
	request := seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusPaymentCompleted)

	_, err := suite.service.UpdateTransferStatus(request.ID, suite.buyer.ID, &UpdateTransferRequest{
		Status: models.StatusTransferInProgress,
	})
	suite.True(apperrors.IsValidation(err))
}

func (suite *TransferServiceTestSuite) TestUpdateBeforePaymentForbidden() {
	request := seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusAgreementReached)

	_, err := suite.service.UpdateTransferStatus(request.ID, suite.seller.ID, &UpdateTransferRequest{
		Status: models.StatusTransferInProgress,
	})

	var conflictErr *apperrors.ConflictError
	suite.Require().True(errors.As(err, &conflictErr))
	suite.Equal(string(models.StatusAgreementReached), conflictErr.CurrentStatus)
}

func (suite *TransferServiceTestSuite) TestConfirmReceiptTransfersOwnership() {
	request := seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusAssetsTransferred)

	updated, err := suite.service.ConfirmReceipt(request.ID, suite.buyer.ID)
	suite.Require().NoError(err)
	suite.Equal(models.StatusCompleted, updated.Status)

	// Ownership moved and the project left the market atomically.
	var project models.Project
	suite.Require().NoError(suite.db.First(&project, "id = ?", suite.project.ID).Error)
	suite.Equal(suite.buyer.ID, project.OwnerID)
	suite.False(project.IsForSale)

	// The seller hears about the completed sale.
	var count int64
	suite.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", suite.seller.ID, models.NotificationTypeSaleCompleted).
		Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *TransferServiceTestSuite) TestConfirmReceiptSkippingProgressMarks() {
	// Sellers may hand everything over without marking explicit progress.
	request := seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusPaymentCompleted)

	updated, err := suite.service.ConfirmReceipt(request.ID, suite.buyer.ID)
	suite.Require().NoError(err)
	suite.Equal(models.StatusCompleted, updated.Status)
}

func (suite *TransferServiceTestSuite) TestSellerCannotConfirmReceipt() {
	request := seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusAssetsTransferred)

	_, err := suite.service.ConfirmReceipt(request.ID, suite.seller.ID)
	suite.True(apperrors.IsValidation(err))
}

func (suite *TransferServiceTestSuite) TestConfirmReceiptWrongStateLeavesOwnership() {
	request := seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusPaymentProcessing)

	_, err := suite.service.ConfirmReceipt(request.ID, suite.buyer.ID)
	suite.True(apperrors.IsConflict(err))

	// The ownership update rolled back with the failed status change.
	var project models.Project
	suite.Require().NoError(suite.db.First(&project, "id = ?", suite.project.ID).Error)
	suite.Equal(suite.seller.ID, project.OwnerID)
	suite.True(project.IsForSale)
}

func (suite *TransferServiceTestSuite) TestConfirmReceiptTwiceIsConflict() {
	request := seedRequest(suite.T(), suite.db, suite.project, suite.buyer.ID, models.StatusAssetsTransferred)

	_, err := suite.service.ConfirmReceipt(request.ID, suite.buyer.ID)
	suite.Require().NoError(err)

	_, err = suite.service.ConfirmReceipt(request.ID, suite.buyer.ID)

	var conflictErr *apperrors.ConflictError
	suite.Require().True(errors.As(err, &conflictErr))
	suite.Equal(string(models.StatusCompleted), conflictErr.CurrentStatus)
}

func TestTransferServiceSuite(t *testing.T) {
	suite.Run(t, new(TransferServiceTestSuite))
}

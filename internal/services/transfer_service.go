// internal/services/transfer_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/database"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

// TransferService runs the post-payment, human-verified asset handoff: the
// seller marks transfer progress, the buyer confirms receipt, and confirmation
// atomically hands project ownership to the buyer.
type TransferService struct {
	db            *gorm.DB
	notifications *NotificationService
}

type UpdateTransferRequest struct {
	Status models.RequestStatus `json:"status" validate:"required,oneof=transfer_in_progress assets_transferred_pending_confirmation"`
	Notes  string               `json:"notes,omitempty" validate:"max=5000"`
}

func NewTransferService(db *gorm.DB, notifications *NotificationService) *TransferService {
	return &TransferService{
		db:            db,
		notifications: notifications,
	}
}

// UpdateTransferStatus is seller-only and valid while the handoff is pending:
// from payment_completed_pending_transfer or transfer_in_progress.
func (s *TransferService) UpdateTransferStatus(requestID, sellerID uuid.UUID, req *UpdateTransferRequest) (*models.PurchaseRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewValidation("invalid transfer update: %v", err)
	}

	request, err := s.loadRequestForParty(requestID, sellerID)
	if err != nil {
		return nil, err
	}
	if request.SellerID != sellerID {
		return nil, apperrors.NewValidation("only the seller can update transfer status")
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.PurchaseRequest{}).
			Where("id = ? AND status IN ?", requestID,
				[]models.RequestStatus{models.StatusPaymentCompleted, models.StatusTransferInProgress}).
			Updates(map[string]interface{}{
				"status":         req.Status,
				"transfer_notes": req.Notes,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update request: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var current models.PurchaseRequest
			if err := tx.Select("status").First(&current, "id = ?", requestID).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			return apperrors.NewConflict("request is not in a transferable state", string(current.Status))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	message := "The seller started transferring the project assets"
	if req.Status == models.StatusAssetsTransferred {
		message = "The seller marked all assets as transferred; please confirm receipt"
	}
	if err := s.notifications.Notify(request.BuyerID, models.NotificationTypeTransferUpdated,
		message, "/requests/"+requestID.String()); err != nil {
		logrus.WithError(err).Warn("Failed to send transfer notification; transition stands")
	}

	return s.reload(requestID)
}

// ConfirmReceipt is buyer-only. In one transaction it hands project ownership
// to the buyer, takes the project off the market, and closes the request as
// completed. Both mutations commit together or not at all.
func (s *TransferService) ConfirmReceipt(requestID, buyerID uuid.UUID) (*models.PurchaseRequest, error) {
	request, err := s.loadRequestForParty(requestID, buyerID)
	if err != nil {
		return nil, err
	}
	if request.BuyerID != buyerID {
		return nil, apperrors.NewValidation("only the buyer can confirm receipt")
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Project{}).
			Where("id = ?", request.ProjectID).
			Updates(map[string]interface{}{
				"owner_id":    buyerID,
				"is_for_sale": false,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to transfer project ownership: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.NewNotFound("project")
		}

		// Directly from payment_completed_pending_transfer covers sellers who
		// skip explicit progress marking.
		statusResult := tx.Model(&models.PurchaseRequest{}).
			Where("id = ? AND status IN ?", requestID,
				[]models.RequestStatus{models.StatusAssetsTransferred, models.StatusPaymentCompleted}).
			Update("status", models.StatusCompleted)
		if statusResult.Error != nil {
			return fmt.Errorf("failed to update request: %w", statusResult.Error)
		}
		if statusResult.RowsAffected == 0 {
			var current models.PurchaseRequest
			if err := tx.Select("status").First(&current, "id = ?", requestID).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			return apperrors.NewConflict("request is not awaiting confirmation", string(current.Status))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifications.Notify(request.SellerID, models.NotificationTypeSaleCompleted,
		"The buyer confirmed receipt; the sale is complete",
		"/requests/"+requestID.String()); err != nil {
		logrus.WithError(err).Warn("Failed to send completion notification; transition stands")
	}

	return s.reload(requestID)
}

func (s *TransferService) loadRequestForParty(requestID, userID uuid.UUID) (*models.PurchaseRequest, error) {
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

func (s *TransferService) reload(requestID uuid.UUID) (*models.PurchaseRequest, error) {
	var request models.PurchaseRequest
	if err := s.db.First(&request, "id = ?", requestID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}
	return &request, nil
}

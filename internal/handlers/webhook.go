// internal/handlers/webhook.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/services"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

// WebhookHandler terminates the payment provider's delivery contract: 2xx
// acknowledges the event, 4xx tells the provider the event can never succeed,
// anything else asks for a retry.
type WebhookHandler struct {
	webhookService *services.WebhookService
}

func NewWebhookHandler(webhookService *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// POST /webhooks/payment
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read webhook payload", nil)
		return
	}

	err = h.webhookService.HandleEvent(payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, apperrors.ErrIdempotentNoop):
		// Duplicate delivery. Acknowledge so the provider stops retrying.
		c.JSON(http.StatusOK, gin.H{"received": true, "applied": false})
	case apperrors.IsValidation(err), apperrors.IsNotFound(err):
		// Retrying cannot fix a bad signature, malformed metadata, or an
		// event for a request this system never created.
		logrus.WithError(err).Warn("Rejecting payment webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		// Transient failure; a provider retry may succeed.
		logrus.WithError(err).Error("Failed to process payment webhook")
		c.JSON(http.StatusBadGateway, gin.H{"error": "webhook processing failed"})
	}
}

// GET /transactions
func (h *WebhookHandler) GetTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	transactions, total, err := h.webhookService.ListTransactions(userID, params)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(transactions, total, params))
}

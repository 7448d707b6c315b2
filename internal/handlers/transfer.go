// internal/handlers/transfer.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/devmarket/devmarket-backend/internal/services"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

type TransferHandler struct {
	transferService *services.TransferService
}

func NewTransferHandler(transferService *services.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
	}
}

// PUT /requests/:id/transfer-status
func (h *TransferHandler) UpdateTransferStatus(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	var req services.UpdateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	request, err := h.transferService.UpdateTransferStatus(requestID, userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// POST /requests/:id/confirm-receipt
func (h *TransferHandler) ConfirmReceipt(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	request, err := h.transferService.ConfirmReceipt(requestID, userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

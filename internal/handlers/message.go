// internal/handlers/message.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/devmarket/devmarket-backend/internal/services"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// POST /requests/:id/messages
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	message, err := h.messageService.Send(requestID, userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, message)
}

// GET /requests/:id/messages
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	messages, total, err := h.messageService.List(requestID, userID, params)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(messages, total, params))
}

// PUT /requests/:id/messages/read
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	if err := h.messageService.MarkConversationRead(requestID, userID); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"read": true})
}

// POST /requests/:id/typing
func (h *MessageHandler) PublishTyping(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	var req struct {
		Started bool `json:"started"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if err := h.messageService.PublishTyping(requestID, userID, req.Started); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"published": true})
}

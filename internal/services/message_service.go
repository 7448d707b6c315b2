// internal/services/message_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/realtime"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

// MessageService runs the per-request conversation between buyer and seller.
// Messages are persisted and pushed; typing signals are pure pub/sub and are
// never persisted.
type MessageService struct {
	db            *gorm.DB
	publisher     realtime.Publisher
	notifications *NotificationService
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

func NewMessageService(db *gorm.DB, publisher realtime.Publisher, notifications *NotificationService) *MessageService {
	return &MessageService{
		db:            db,
		publisher:     publisher,
		notifications: notifications,
	}
}

// Send persists a message from senderID to the other party of the request,
// pushes it to the receiver's channel, and raises a notification.
func (s *MessageService) Send(requestID, senderID uuid.UUID, req *SendMessageRequest) (*models.Message, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.NewValidation("message content must not be empty")
	}

	request, err := s.loadRequestForParty(requestID, senderID)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		RequestID:  requestID,
		SenderID:   senderID,
		ReceiverID: request.OtherParty(senderID),
		Content:    req.Content,
	}

	if err := s.db.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	s.publisher.Publish(realtime.UserChannel(message.ReceiverID), realtime.Event{
		Type:    realtime.EventNewMessage,
		Payload: message,
	})

	if err := s.notifications.Notify(message.ReceiverID, models.NotificationTypeNewMessage,
		"You have a new message about a purchase request",
		"/requests/"+requestID.String()+"/messages"); err != nil {
		// The message row is committed; a failed notification must not undo it.
		return message, nil
	}

	return message, nil
}

func (s *MessageService) List(requestID, callerID uuid.UUID, params utils.PaginationParams) ([]models.Message, int64, error) {
	if _, err := s.loadRequestForParty(requestID, callerID); err != nil {
		return nil, 0, err
	}

	query := s.db.Model(&models.Message{}).Where("request_id = ?", requestID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var messages []models.Message
	err := utils.ApplyPagination(query.Order("created_at ASC"), params).Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return messages, total, nil
}

// MarkConversationRead flips every message addressed to callerID in the
// conversation. Idempotent.
func (s *MessageService) MarkConversationRead(requestID, callerID uuid.UUID) error {
	if _, err := s.loadRequestForParty(requestID, callerID); err != nil {
		return err
	}

	err := s.db.Model(&models.Message{}).
		Where("request_id = ? AND receiver_id = ? AND is_read = ?", requestID, callerID, false).
		Update("is_read", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// PublishTyping broadcasts an ephemeral typing signal to the request room.
// No persistence, no delivery guarantee.
func (s *MessageService) PublishTyping(requestID, userID uuid.UUID, started bool) error {
	if _, err := s.loadRequestForParty(requestID, userID); err != nil {
		return err
	}

	eventType := realtime.EventOpponentTypingStarted
	if !started {
		eventType = realtime.EventOpponentTypingStopped
	}

	s.publisher.Publish(realtime.RequestChannel(requestID), realtime.Event{
		Type: eventType,
		Payload: map[string]string{
			"request_id": requestID.String(),
			"user_id":    userID.String(),
		},
	})

	return nil
}

// CanAccessRequest reports whether userID is a party to the request. Used by
// the realtime gateway to authorize room joins.
func (s *MessageService) CanAccessRequest(requestID, userID uuid.UUID) bool {
	_, err := s.loadRequestForParty(requestID, userID)
	return err == nil
}

// loadRequestForParty returns NotFound for both a missing request and a
// request the caller is not a party to, so existence is never leaked.
func (s *MessageService) loadRequestForParty(requestID, userID uuid.UUID) (*models.PurchaseRequest, error) {
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

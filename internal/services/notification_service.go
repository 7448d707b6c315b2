// internal/services/notification_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/realtime"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

// NotificationService persists notifications and pushes them to the
// recipient's realtime channel. The persisted row is authoritative; the push
// is a latency optimization and its failure never affects stored state.
type NotificationService struct {
	db        *gorm.DB
	publisher realtime.Publisher
}

func NewNotificationService(db *gorm.DB, publisher realtime.Publisher) *NotificationService {
	return &NotificationService{
		db:        db,
		publisher: publisher,
	}
}

// Notify persists first and publishes second, so a push can never precede the
// row a concurrent pull query would read.
func (s *NotificationService) Notify(userID uuid.UUID, ntype models.NotificationType, message, link string) error {
	notification := &models.Notification{
		UserID:  userID,
		Type:    ntype,
		Message: message,
		Link:    link,
	}

	if err := s.db.Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	s.publisher.Publish(realtime.UserChannel(userID), realtime.Event{
		Type:    realtime.EventNewNotification,
		Payload: notification,
	})

	return nil
}

func (s *NotificationService) List(userID uuid.UUID, params utils.PaginationParams) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at"})
	query = utils.ApplyPagination(query, params)

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	return notifications, total, nil
}

func (s *NotificationService) UnreadCount(userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips is_read to true. The flip is monotonic and idempotent;
// re-marking an already-read notification is a no-op success.
func (s *NotificationService) MarkRead(id, userID uuid.UUID) error {
	result := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var existing models.Notification
		if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("notification")
			}
			return fmt.Errorf("database error: %w", err)
		}
	}

	return nil
}

func (s *NotificationService) MarkAllRead(userID uuid.UUID) error {
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

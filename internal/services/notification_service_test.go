// internal/services/notification_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/realtime"
)

func TestNotifyPersistsAndPublishes(t *testing.T) {
	db := setupTestDB(t)
	publisher := &capturePublisher{}
	service := NewNotificationService(db, publisher)
	user := createTestUser(t, db, "recipient")

	err := service.Notify(user.ID, models.NotificationTypeInterestReceived, "A buyer expressed interest", "/requests/x")
	require.NoError(t, err)

	// The row exists regardless of any live connection.
	var stored models.Notification
	require.NoError(t, db.First(&stored, "user_id = ?", user.ID).Error)
	assert.Equal(t, models.NotificationTypeInterestReceived, stored.Type)
	assert.False(t, stored.IsRead)

	// And the push targeted the user's channel.
	events := publisher.captured()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.UserChannel(user.ID), events[0].Channel)
	assert.Equal(t, realtime.EventNewNotification, events[0].Event.Type)
}

func TestOfflineRecipientStillGetsRow(t *testing.T) {
	db := setupTestDB(t)
	// A bare hub with no subscribers stands in for an offline recipient.
	service := NewNotificationService(db, realtime.NewHub())
	user := createTestUser(t, db, "offline")

	err := service.Notify(user.ID, models.NotificationTypeNewMessage, "You have a new message", "/requests/x")
	require.NoError(t, err)

	notifications, total, err := service.List(user.ID, testPagination())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, notifications, 1)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	db := setupTestDB(t)
	service := NewNotificationService(db, &capturePublisher{})
	user := createTestUser(t, db, "reader")

	require.NoError(t, service.Notify(user.ID, models.NotificationTypeTermsProposed, "Terms proposed", "/requests/a"))
	require.NoError(t, service.Notify(user.ID, models.NotificationTypeTermsAccepted, "Terms accepted", "/requests/b"))

	count, err := service.UnreadCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	var first models.Notification
	require.NoError(t, db.First(&first, "user_id = ?", user.ID).Error)

	require.NoError(t, service.MarkRead(first.ID, user.ID))

	// Idempotent re-mark.
	require.NoError(t, service.MarkRead(first.ID, user.ID))

	count, err = service.UnreadCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkReadForeignNotification(t *testing.T) {
	db := setupTestDB(t)
	service := NewNotificationService(db, &capturePublisher{})
	owner := createTestUser(t, db, "owner")
	intruder := createTestUser(t, db, "intruder")

	require.NoError(t, service.Notify(owner.ID, models.NotificationTypeNewMessage, "msg", "/requests/x"))

	var stored models.Notification
	require.NoError(t, db.First(&stored, "user_id = ?", owner.ID).Error)

	err := service.MarkRead(stored.ID, intruder.ID)
	assert.True(t, apperrors.IsNotFound(err))

	err = service.MarkRead(uuid.New(), owner.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMarkAllRead(t *testing.T) {
	db := setupTestDB(t)
	service := NewNotificationService(db, &capturePublisher{})
	user := createTestUser(t, db, "bulk")

	for i := 0; i < 3; i++ {
		require.NoError(t, service.Notify(user.ID, models.NotificationTypeTransferUpdated, "update", "/requests/x"))
	}

	require.NoError(t, service.MarkAllRead(user.ID))

	count, err := service.UnreadCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

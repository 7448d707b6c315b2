// internal/services/message_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/realtime"
)

type MessageServiceTestSuite struct {
	suite.Suite
	db        *gorm.DB
	publisher *capturePublisher
	service   *MessageService

	seller  *models.User
	buyer   *models.User
	request *models.PurchaseRequest
}

func (suite *MessageServiceTestSuite) SetupTest() {
	suite.db = setupTestDB(suite.T())
	suite.publisher = &capturePublisher{}

	notifications := NewNotificationService(suite.db, suite.publisher)
	suite.service = NewMessageService(suite.db, suite.publisher, notifications)

	suite.seller = createTestUser(suite.T(), suite.db, "seller")
	suite.buyer = createTestUser(suite.T(), suite.db, "buyer")
	project := createTestProject(suite.T(), suite.db, suite.seller.ID, 100.00)
	suite.request = seedRequest(suite.T(), suite.db, project, suite.buyer.ID, models.StatusTermsProposed)
}

func (suite *MessageServiceTestSuite) TestSendDerivesReceiver() {
	message, err := suite.service.Send(suite.request.ID, suite.buyer.ID, &SendMessageRequest{
		Content: "Can you include the domain?",
	})
	suite.Require().NoError(err)

	suite.Equal(suite.seller.ID, message.ReceiverID)
	suite.False(message.IsRead)

	// The push goes to the receiver's channel and a notification row lands.
	events := suite.publisher.captured()
	suite.Require().NotEmpty(events)
	suite.Equal(realtime.UserChannel(suite.seller.ID), events[0].Channel)
	suite.Equal(realtime.EventNewMessage, events[0].Event.Type)

	var count int64
	suite.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", suite.seller.ID, models.NotificationTypeNewMessage).
		Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *MessageServiceTestSuite) TestSendBlankContent() {
	_, err := suite.service.Send(suite.request.ID, suite.buyer.ID, &SendMessageRequest{Content: "   "})
	suite.True(apperrors.IsValidation(err))
}

func (suite *MessageServiceTestSuite) TestStrangerCannotSend() {
	stranger := createTestUser(suite.T(), suite.db, "stranger")

	_, err := suite.service.Send(suite.request.ID, stranger.ID, &SendMessageRequest{Content: "hello"})
	suite.True(apperrors.IsNotFound(err))
}

func (suite *MessageServiceTestSuite) TestListOrdersOldestFirst() {
	for _, content := range []string{"first", "second", "third"} {
		_, err := suite.service.Send(suite.request.ID, suite.buyer.ID, &SendMessageRequest{Content: content})
		suite.Require().NoError(err)
	}

	messages, total, err := suite.service.List(suite.request.ID, suite.seller.ID, testPagination())
	suite.Require().NoError(err)
	suite.Equal(int64(3), total)
	suite.Require().Len(messages, 3)
	suite.Equal("first", messages[0].Content)
	suite.Equal("third", messages[2].Content)
}

func (suite *MessageServiceTestSuite) TestMarkConversationRead() {
	_, err := suite.service.Send(suite.request.ID, suite.buyer.ID, &SendMessageRequest{Content: "ping"})
	suite.Require().NoError(err)
	_, err = suite.service.Send(suite.request.ID, suite.seller.ID, &SendMessageRequest{Content: "pong"})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.MarkConversationRead(suite.request.ID, suite.seller.ID))

	// Only the seller's inbound messages flipped.
	var unreadForSeller, unreadForBuyer int64
	suite.db.Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", suite.seller.ID, false).Count(&unreadForSeller)
	suite.db.Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", suite.buyer.ID, false).Count(&unreadForBuyer)
	suite.Equal(int64(0), unreadForSeller)
	suite.Equal(int64(1), unreadForBuyer)

	// Idempotent.
	suite.NoError(suite.service.MarkConversationRead(suite.request.ID, suite.seller.ID))
}

func (suite *MessageServiceTestSuite) TestPublishTyping() {
	suite.Require().NoError(suite.service.PublishTyping(suite.request.ID, suite.buyer.ID, true))
	suite.Require().NoError(suite.service.PublishTyping(suite.request.ID, suite.buyer.ID, false))

	events := suite.publisher.captured()
	suite.Require().Len(events, 2)
	suite.Equal(realtime.RequestChannel(suite.request.ID), events[0].Channel)
	suite.Equal(realtime.EventOpponentTypingStarted, events[0].Event.Type)
	suite.Equal(realtime.EventOpponentTypingStopped, events[1].Event.Type)

	// Nothing persisted for typing signals.
	var count int64
	suite.db.Model(&models.Message{}).Count(&count)
	suite.Equal(int64(0), count)
}

func (suite *MessageServiceTestSuite) TestCanAccessRequest() {
	stranger := createTestUser(suite.T(), suite.db, "stranger")

	suite.True(suite.service.CanAccessRequest(suite.request.ID, suite.buyer.ID))
	suite.True(suite.service.CanAccessRequest(suite.request.ID, suite.seller.ID))
	suite.False(suite.service.CanAccessRequest(suite.request.ID, stranger.ID))
}

func TestMessageServiceSuite(t *testing.T) {
	suite.Run(t, new(MessageServiceTestSuite))
}

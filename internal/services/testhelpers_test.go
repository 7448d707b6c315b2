// internal/services/testhelpers_test.go
package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/devmarket/devmarket-backend/internal/config"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/payments"
	"github.com/devmarket/devmarket-backend/internal/realtime"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

func testPagination() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"}
}

// setupTestDB opens an isolated in-memory database with the full schema.
// TranslateError matches the production connection so unique-index violations
// surface as gorm.ErrDuplicatedKey.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.PurchaseRequest{},
		&models.Transaction{},
		&models.Certificate{},
		&models.Notification{},
		&models.Message{},
		&models.AuditLog{},
	))

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:      "test-secret",
			AccessTokenTTL: 1,
		},
		Payment: config.PaymentConfig{
			PlatformFeePercent: 5.0,
			Currency:           "usd",
		},
		Frontend: config.FrontendConfig{
			BaseURL: "http://localhost:3000",
		},
	}
}

// fakeGateway is a scriptable payments.Gateway. Zero value behaves like a
// healthy provider.
type fakeGateway struct {
	mtx sync.Mutex

	createCalls int
	createErr   error

	detail    *payments.PaymentDetail
	detailErr error

	event    *payments.WebhookEvent
	parseErr error
}

func (g *fakeGateway) CreateCheckoutSession(params *payments.CheckoutParams) (*payments.CheckoutSession, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payments.CheckoutSession{
		ID:              fmt.Sprintf("cs_test_%d", g.createCalls),
		URL:             "https://checkout.test/session",
		PaymentIntentID: fmt.Sprintf("pi_test_%d", g.createCalls),
	}, nil
}

func (g *fakeGateway) GetPaymentDetail(paymentIntentID string) (*payments.PaymentDetail, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	if g.detailErr != nil {
		return nil, g.detailErr
	}
	if g.detail != nil {
		return g.detail, nil
	}
	return &payments.PaymentDetail{
		PaymentIntentID: paymentIntentID,
		ChargeID:        "ch_test_1",
		AmountTotal:     100.00,
		Currency:        "usd",
		Status:          "succeeded",
	}, nil
}

func (g *fakeGateway) ParseWebhookEvent(payload []byte, signatureHeader string) (*payments.WebhookEvent, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return g.event, nil
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mtx    sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	Channel string
	Event   realtime.Event
}

func (p *capturePublisher) Publish(channel string, event realtime.Event) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.events = append(p.events, capturedEvent{Channel: channel, Event: event})
}

func (p *capturePublisher) captured() []capturedEvent {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	out := make([]capturedEvent, len(p.events))
	copy(out, p.events)
	return out
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Status:   models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("TestPass123!"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestProject(t *testing.T, db *gorm.DB, ownerID uuid.UUID, price float64) *models.Project {
	t.Helper()

	project := &models.Project{
		OwnerID:     ownerID,
		Title:       "SaaS analytics dashboard",
		Description: "A production analytics product with paying customers.",
		Category:    "saas",
		Price:       price,
		IsForSale:   true,
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// seedRequest creates a purchase request in the given status, bypassing the
// workflow. Used to start tests mid-lifecycle.
func seedRequest(t *testing.T, db *gorm.DB, project *models.Project, buyerID uuid.UUID, status models.RequestStatus) *models.PurchaseRequest {
	t.Helper()

	request := &models.PurchaseRequest{
		ProjectID:    project.ID,
		BuyerID:      buyerID,
		SellerID:     project.OwnerID,
		Status:       status,
		OfferAmount:  project.Price,
		AgreedAmount: project.Price,
	}
	require.NoError(t, db.Create(request).Error)
	return request
}

func requestStatus(t *testing.T, db *gorm.DB, requestID uuid.UUID) models.RequestStatus {
	t.Helper()

	var request models.PurchaseRequest
	require.NoError(t, db.First(&request, "id = ?", requestID).Error)
	return request.Status
}

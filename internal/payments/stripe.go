// internal/payments/stripe.go
package payments

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/devmarket/devmarket-backend/internal/config"
)

const metadataRequestID = "purchase_request_id"

type StripeGateway struct {
	webhookSecret string
}

func NewStripeGateway(cfg config.PaymentConfig) *StripeGateway {
	stripe.Key = cfg.StripeSecretKey

	return &StripeGateway{
		webhookSecret: cfg.StripeWebhookSecret,
	}
}

func (g *StripeGateway) CreateCheckoutSession(params *CheckoutParams) (*CheckoutSession, error) {
	amountInCents := int64(math.Round(params.Amount * 100))

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(amountInCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.ProjectTitle),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				metadataRequestID: params.RequestID,
			},
		},
	}
	sessionParams.AddMetadata(metadataRequestID, params.RequestID)

	s, err := session.New(sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	result := &CheckoutSession{
		ID:  s.ID,
		URL: s.URL,
	}
	if s.PaymentIntent != nil {
		result.PaymentIntentID = s.PaymentIntent.ID
	}

	return result, nil
}

func (g *StripeGateway) GetPaymentDetail(paymentIntentID string) (*PaymentDetail, error) {
	params := &stripe.PaymentIntentParams{}
	params.AddExpand("latest_charge")

	pi, err := paymentintent.Get(paymentIntentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	detail := &PaymentDetail{
		PaymentIntentID: pi.ID,
		AmountTotal:     float64(pi.Amount) / 100,
		Currency:        string(pi.Currency),
		Status:          string(pi.Status),
	}
	if pi.LatestCharge != nil {
		detail.ChargeID = pi.LatestCharge.ID
		// The captured charge is authoritative over the intent amount.
		detail.AmountTotal = float64(pi.LatestCharge.Amount) / 100
	}

	return detail, nil
}

func (g *StripeGateway) ParseWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	var event stripe.Event

	if g.webhookSecret != "" {
		verified, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
		if err != nil {
			return nil, fmt.Errorf("webhook signature verification failed: %w", err)
		}
		event = verified
	} else {
		// Disconnected-environment fallback: no signing secret configured, so
		// the payload is processed unverified.
		logrus.Warn("Processing webhook without signature verification; STRIPE_WEBHOOK_SECRET is not set")
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
		}
	}

	normalized := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	switch normalized.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session payload: %w", err)
		}
		normalized.RequestID = s.Metadata[metadataRequestID]
		if s.PaymentIntent != nil {
			normalized.PaymentIntentID = s.PaymentIntent.ID
		}

	case EventPaymentSucceeded, EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to parse payment intent payload: %w", err)
		}
		normalized.RequestID = pi.Metadata[metadataRequestID]
		normalized.PaymentIntentID = pi.ID
	}

	return normalized, nil
}

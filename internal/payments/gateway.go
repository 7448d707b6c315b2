// internal/payments/gateway.go
package payments

// Gateway is the payment-provider boundary. The production implementation is
// Stripe; tests substitute a fake. Amounts cross this boundary in major
// currency units (dollars), not cents.
type Gateway interface {
	// CreateCheckoutSession creates a hosted checkout session for a purchase
	// request. Creation is idempotent per non-terminal request: a timeout
	// leaves the request in its prior pending state and the call is safely
	// retried.
	CreateCheckoutSession(params *CheckoutParams) (*CheckoutSession, error)

	// GetPaymentDetail re-fetches the authoritative payment-intent and charge
	// detail. Webhook- or client-supplied amounts are never trusted.
	GetPaymentDetail(paymentIntentID string) (*PaymentDetail, error)

	// ParseWebhookEvent verifies the event signature (when a signing secret is
	// configured) and normalizes the provider payload.
	ParseWebhookEvent(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

type CheckoutParams struct {
	RequestID    string
	ProjectTitle string
	Amount       float64
	Currency     string
	SuccessURL   string
	CancelURL    string
}

type CheckoutSession struct {
	ID              string
	URL             string
	PaymentIntentID string
}

type PaymentDetail struct {
	PaymentIntentID string
	ChargeID        string
	AmountTotal     float64
	Currency        string
	Status          string
}

// Webhook event types the reconciler reacts to. Values follow the provider's
// naming so raw payloads map through without translation.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	// RequestID is the purchase_request_id metadata value, empty when the
	// provider event carries no such metadata.
	RequestID string
}

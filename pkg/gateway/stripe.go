package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/global"
)

const eventCheckoutCompleted = "checkout.session.completed"

// Stripe creates Stripe Checkout sessions and reads their completion events.
type Stripe struct {
	cfg      global.StripeConfig
	sessions *session.Client
}

func NewStripe(cfg global.StripeConfig, httpClient *http.Client) *Stripe {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: httpClient,
	})
	return &Stripe{
		cfg:      cfg,
		sessions: &session.Client{B: backend, Key: cfg.SecretKey},
	}
}

func (s *Stripe) Name() string {
	return "stripe"
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.CartReference),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(MinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	params.AddMetadata("cart_id", req.CartReference)
	params.Context = ctx

	sess, err := s.sessions.New(params)
	if err != nil {
		return nil, apperror.Upstream(errors.Wrap(err, "create stripe checkout session"))
	}
	return &Session{RedirectURL: sess.URL, TransactionRef: sess.ID}, nil
}

// ParseNotification verifies the Stripe-Signature header and maps a
// checkout.session.completed event. Other event types are reported as not
// approved so they are acknowledged and ignored.
func (s *Stripe) ParseNotification(header http.Header, body []byte) (*Notification, error) {
	event, err := webhook.ConstructEventWithOptions(body, header.Get("Stripe-Signature"), s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, ErrInvalidSignature.Wrap(err)
	}
	if string(event.Type) != eventCheckoutCompleted {
		return &Notification{TransactionRef: event.ID, Status: string(event.Type)}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, errors.Wrap(err, "decode stripe checkout session")
	}
	cartRef := sess.ClientReferenceID
	if cartRef == "" {
		cartRef = sess.Metadata["cart_id"]
	}
	return &Notification{
		TransactionRef: sess.ID,
		CartReference:  cartRef,
		Approved:       sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Status:         string(sess.PaymentStatus),
		Amount:         decimal.New(sess.AmountTotal, -2),
		Currency:       strings.ToUpper(string(sess.Currency)),
	}, nil
}

// MinorUnits converts a two-decimal amount into cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

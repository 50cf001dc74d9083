// Package gateway adapts hosted payment pages to checkout. A gateway creates a
// session keyed by the cart id and later reports the outcome through a signed
// server-to-server notification.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/global"
)

var ErrInvalidSignature = apperror.New(apperror.KindUnauthorized, "invalid_signature", "Notification signature does not match")

type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

type SessionRequest struct {
	CartReference string
	Amount        decimal.Decimal
	Currency      string
	Description   string
	Customer      Customer
}

type Session struct {
	RedirectURL    string `json:"redirect_url"`
	TransactionRef string `json:"transaction_ref"`
}

// Notification is the gateway-neutral view of a payment callback.
type Notification struct {
	TransactionRef string
	CartReference  string
	Approved       bool
	Status         string
	Amount         decimal.Decimal
	Currency       string
}

type Gateway interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	ParseNotification(header http.Header, body []byte) (*Notification, error)
}

// New builds the gateway selected by cfg.PaymentGateway.
func New(cfg global.Config) (Gateway, error) {
	switch cfg.PaymentGateway {
	case "", "paytabs":
		return NewPayTabs(cfg.PayTabs, &http.Client{Timeout: cfg.UpstreamTimeout}), nil
	case "stripe":
		return NewStripe(cfg.Stripe, &http.Client{Timeout: cfg.UpstreamTimeout}), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.PaymentGateway)
	}
}

package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/global"
)

const payTabsApproved = "A"

// PayTabs talks to the PayTabs hosted payment page API.
type PayTabs struct {
	cfg    global.PayTabsConfig
	client *http.Client
}

func NewPayTabs(cfg global.PayTabsConfig, client *http.Client) *PayTabs {
	if client == nil {
		client = http.DefaultClient
	}
	return &PayTabs{cfg: cfg, client: client}
}

func (p *PayTabs) Name() string {
	return "paytabs"
}

type payTabsCustomer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Street1 string `json:"street1"`
}

type payTabsRequest struct {
	ProfileID       int             `json:"profile_id"`
	TranType        string          `json:"tran_type"`
	TranClass       string          `json:"tran_class"`
	CartID          string          `json:"cart_id"`
	CartCurrency    string          `json:"cart_currency"`
	CartAmount      decimal.Decimal `json:"cart_amount"`
	CartDescription string          `json:"cart_description"`
	Callback        string          `json:"callback,omitempty"`
	Return          string          `json:"return,omitempty"`
	CustomerDetails payTabsCustomer `json:"customer_details"`
}

type payTabsResponse struct {
	TranRef     string `json:"tran_ref"`
	RedirectURL string `json:"redirect_url"`
	Code        int    `json:"code"`
	Message     string `json:"message"`
}

type payTabsCallback struct {
	TranRef       string          `json:"tran_ref"`
	CartID        string          `json:"cart_id"`
	CartCurrency  string          `json:"cart_currency"`
	CartAmount    decimal.Decimal `json:"cart_amount"`
	PaymentResult struct {
		ResponseStatus  string `json:"response_status"`
		ResponseMessage string `json:"response_message"`
	} `json:"payment_result"`
}

func (p *PayTabs) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	payload, err := json.Marshal(payTabsRequest{
		ProfileID:       p.cfg.ProfileID,
		TranType:        "sale",
		TranClass:       "ecom",
		CartID:          req.CartReference,
		CartCurrency:    req.Currency,
		CartAmount:      req.Amount.Round(2),
		CartDescription: req.Description,
		Callback:        p.cfg.CallbackURL,
		Return:          p.cfg.ReturnURL,
		CustomerDetails: payTabsCustomer{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Phone:   req.Customer.Phone,
			Street1: req.Customer.Address,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal paytabs request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.cfg.BaseURL, "/")+"/payment/request", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build paytabs request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", p.cfg.ServerKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperror.Upstream(errors.Wrap(err, "paytabs payment request"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperror.Upstream(errors.Wrap(err, "read paytabs response"))
	}
	var out payTabsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperror.Upstream(errors.Wrapf(err, "decode paytabs response (status %d)", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest || out.RedirectURL == "" {
		return nil, apperror.Upstream(errors.Errorf("paytabs rejected payment request: status %d code %d: %s", resp.StatusCode, out.Code, out.Message))
	}

	return &Session{RedirectURL: out.RedirectURL, TransactionRef: out.TranRef}, nil
}

// ParseNotification verifies the HMAC-SHA256 "Signature" header over the raw
// body with the server key before trusting the payload.
func (p *PayTabs) ParseNotification(header http.Header, body []byte) (*Notification, error) {
	if !p.validSignature(header.Get("Signature"), body) {
		return nil, ErrInvalidSignature
	}
	var cb payTabsCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, errors.Wrap(err, "decode paytabs callback")
	}
	if cb.TranRef == "" || cb.CartID == "" {
		return nil, errors.New("paytabs callback is missing tran_ref or cart_id")
	}
	return &Notification{
		TransactionRef: cb.TranRef,
		CartReference:  cb.CartID,
		Approved:       cb.PaymentResult.ResponseStatus == payTabsApproved,
		Status:         cb.PaymentResult.ResponseStatus,
		Amount:         cb.CartAmount,
		Currency:       cb.CartCurrency,
	}, nil
}

func (p *PayTabs) validSignature(signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, SignPayTabs(p.cfg.ServerKey, body))
}

// SignPayTabs returns the callback signature for body.
func SignPayTabs(serverKey string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(serverKey))
	mac.Write(body)
	return mac.Sum(nil)
}

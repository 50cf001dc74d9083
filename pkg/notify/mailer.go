// Package notify tells customers about their orders.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/models"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends an HTML invoice for each placed order.
type Mailer struct {
	cfg  global.MailConfig
	send SendFunc
	tmpl *template.Template
}

func NewMailer(cfg global.MailConfig) *Mailer {
	return &Mailer{
		cfg:  cfg,
		send: smtp.SendMail,
		tmpl: template.Must(template.New("invoice").Parse(invoiceTemplate)),
	}
}

// WithSender replaces the SMTP transport.
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	m.send = send
	return m
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, order *models.Order, user *models.User) error {
	if user.Email == "" {
		return errors.New("user has no email address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := m.tmpl.Execute(&body, invoiceView(order, user)); err != nil {
		return pkgerrors.Wrap(err, "render invoice")
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", user.Email)
	fmt.Fprintf(&msg, "Subject: Order confirmation #%s\r\n", order.ID.Hex())
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body.Bytes())

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{user.Email}, msg.Bytes()); err != nil {
		return pkgerrors.Wrapf(err, "send invoice to %s", user.Email)
	}

	log.WithFields(log.Fields{"order_id": order.ID.Hex(), "to": user.Email}).Info("Invoice email sent")
	return nil
}

type invoiceLine struct {
	ProductID    string
	Quantity     int
	UnitPrice    string
	Installation string
	LineTotal    string
}

type invoice struct {
	CustomerName  string
	OrderID       string
	PlacedAt      string
	PaymentMethod string
	Paid          bool
	Currency      string
	Address       string
	Lines         []invoiceLine
	SubTotal      string
	Installation  string
	Shipping      string
	Total         string
}

func invoiceView(order *models.Order, user *models.User) invoice {
	lines := make([]invoiceLine, 0, len(order.CartItems))
	for i := range order.CartItems {
		item := &order.CartItems[i]
		lines = append(lines, invoiceLine{
			ProductID:    item.ProductID.Hex(),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice.StringFixed(2),
			Installation: item.InstallationPrice.StringFixed(2),
			LineTotal:    item.LineTotal().StringFixed(2),
		})
	}
	return invoice{
		CustomerName:  user.Name,
		OrderID:       order.ID.Hex(),
		PlacedAt:      order.CreatedAt.Format("2006-01-02 15:04"),
		PaymentMethod: strings.ToUpper(string(order.PaymentMethod)),
		Paid:          order.IsPaid,
		Currency:      order.Currency,
		Address:       order.ShippingAddress.Details,
		Lines:         lines,
		SubTotal:      order.SubTotal.StringFixed(2),
		Installation:  order.Installation.StringFixed(2),
		Shipping:      order.Shipping.StringFixed(2),
		Total:         order.Total.StringFixed(2),
	}
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <h2>Thank you for your order, {{.CustomerName}}</h2>
  <p>Order <strong>#{{.OrderID}}</strong> placed on {{.PlacedAt}}.</p>
  <p>Payment: {{.PaymentMethod}}{{if .Paid}} (paid){{end}}</p>
  <p>Ship to: {{.Address}}</p>
  <table border="1" cellpadding="6" cellspacing="0">
    <tr><th>Product</th><th>Qty</th><th>Unit price</th><th>Installation</th><th>Total</th></tr>
    {{range .Lines}}<tr><td>{{.ProductID}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.Installation}}</td><td>{{.LineTotal}}</td></tr>
    {{end}}
  </table>
  <p>Subtotal: {{.SubTotal}} {{.Currency}}</p>
  <p>Installation: {{.Installation}} {{.Currency}}</p>
  <p>Shipping: {{.Shipping}} {{.Currency}}</p>
  <p><strong>Total: {{.Total}} {{.Currency}}</strong></p>
</body>
</html>
`

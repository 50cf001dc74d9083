package notify_test

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/notify"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func setupMailerTest(t *testing.T, sendErr error) (*notify.Mailer, *[]sentMail) {
	t.Helper()
	var sent []sentMail
	m := notify.NewMailer(global.MailConfig{Host: "smtp.example.com", Port: 587, From: "shop@example.com"}).
		WithSender(func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
			return sendErr
		})
	return m, &sent
}

func sampleOrder() (*models.Order, *models.User) {
	user := models.NewUser("Sara <b>", "sara@example.com", "hash", models.RoleUser)
	cart := models.NewCart(user.ID, time.Now())
	cart.Items = []models.CartItem{{ID: bson.NewObjectID(), ProductID: bson.NewObjectID(), Quantity: 2,
		UnitPrice: decimal.NewFromInt(100), InstallationPrice: decimal.NewFromInt(20)}}
	totals := models.OrderTotals{
		SubTotal:     decimal.NewFromInt(200),
		Installation: decimal.NewFromInt(40),
		Shipping:     decimal.NewFromInt(15),
		Total:        decimal.NewFromInt(255),
	}
	order := models.NewOrder(cart, totals, models.ShippingAddress{Details: "King Fahd Rd", Phone: "050"}, models.PaymentCash, "SAR", time.Now())
	return order, user
}

func TestMailer_SendsInvoice(t *testing.T) {
	m, sent := setupMailerTest(t, nil)
	order, user := sampleOrder()

	err := m.SendOrderConfirmation(context.Background(), order, user)

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, []string{"sara@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Order confirmation #"+order.ID.Hex())
	assert.Contains(t, mail.msg, "Total: 255.00 SAR")
	assert.Contains(t, mail.msg, "Sara &lt;b&gt;")
	assert.True(t, strings.Contains(mail.msg, "Content-Type: text/html"))
}

func TestMailer_SendFailure(t *testing.T) {
	m, _ := setupMailerTest(t, errors.New("421 service not available"))
	order, user := sampleOrder()

	err := m.SendOrderConfirmation(context.Background(), order, user)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "421")
}

func TestMailer_NoEmail(t *testing.T) {
	m, sent := setupMailerTest(t, nil)
	order, user := sampleOrder()
	user.Email = ""

	assert.Error(t, m.SendOrderConfirmation(context.Background(), order, user))
	assert.Empty(t, *sent)
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) SendOrderConfirmation(context.Context, *models.Order, *models.User) error {
	c.calls++
	return c.err
}

func TestFanout_CallsEveryNotifier(t *testing.T) {
	failing := &countingNotifier{err: errors.New("boom")}
	ok := &countingNotifier{}
	order, user := sampleOrder()

	err := notify.Fanout{failing, ok}.SendOrderConfirmation(context.Background(), order, user)

	require.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
	assert.NoError(t, notify.Fanout{ok}.SendOrderConfirmation(context.Background(), order, user))
}

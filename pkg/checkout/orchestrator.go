// Package checkout turns a user's cart into an order. Cash orders are placed
// synchronously; card orders are placed when the gateway notification for a
// completed payment arrives.
package checkout

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/gateway"
	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/pricing"
	"storefront.local/checkout-api/pkg/store"
)

var (
	ErrEmptyCart             = apperror.New(apperror.KindConflict, "empty_cart", "Cart is empty")
	ErrInvalidShippingZone   = apperror.New(apperror.KindValidation, "invalid_shipping_zone", "Shipping zone does not exist").WithField("shipping_address.city_zone_id")
	ErrProductNotFound       = apperror.New(apperror.KindNotFound, "product_not_found", "A product in the cart no longer exists")
	ErrInsufficientStock     = apperror.New(apperror.KindConflict, "insufficient_stock", "Not enough units in stock")
	ErrPaymentMethodDisabled = apperror.New(apperror.KindConflict, "payment_method_disabled", "This payment method is currently disabled")
	ErrUserNotFound          = apperror.New(apperror.KindNotFound, "user_not_found", "User not found")
)

// Notifier is told about every order that was placed. Failures are logged
// and never affect the order.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, user *models.User) error
}

// Locker serialises webhook processing per transaction reference.
type Locker interface {
	Lock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// cacheEvicter is an inventory that caches products and must drop them again
// once the order transaction has committed.
type cacheEvicter interface {
	EvictOrder(ctx context.Context, order *models.Order)
}

// Stores groups the persistence ports checkout depends on. Catalog is read
// for stock and price checks and must not be a cache.
type Stores struct {
	Carts     store.Carts
	Catalog   store.Catalog
	Inventory store.Inventory
	Orders    store.Orders
	Zones     store.Zones
	Users     store.Users
	Settings  store.Settings
	Tx        store.Transactor
}

type Config struct {
	Policy        pricing.InstallationPolicy
	Currency      string
	NotifyTimeout time.Duration
}

// Command is a validated checkout request for the authenticated user.
type Command struct {
	UserID  bson.ObjectID
	Address models.ShippingAddress
}

// Outcome reports what a webhook delivery did. Every outcome is acknowledged.
type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeOrderCreated Outcome = "order_created"
	OutcomeFailed       Outcome = "failed"
)

type Orchestrator struct {
	stores   Stores
	gateway  gateway.Gateway
	notifier Notifier
	locker   Locker
	cfg      Config
	now      func() time.Time
	pending  sync.WaitGroup
}

func New(stores Stores, gw gateway.Gateway, notifier Notifier, cfg Config) *Orchestrator {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "SAR"
	}
	if cfg.Policy == "" {
		cfg.Policy = pricing.PolicyReject
	}
	return &Orchestrator{
		stores:   stores,
		gateway:  gw,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithLocker enables the per-transaction webhook lock.
func (o *Orchestrator) WithLocker(l Locker) *Orchestrator {
	o.locker = l
	return o
}

// WithClock replaces the time source.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// quote is a priced cart ready to become an order.
type quote struct {
	cart   *models.Cart
	zone   *models.ShippingZone
	totals models.OrderTotals
}

// CreateCashOrder places a pay-on-delivery order for the user's cart,
// decrements inventory and empties the cart.
func (o *Orchestrator) CreateCashOrder(ctx context.Context, cmd Command) (*models.Order, error) {
	if err := o.requireMethod(ctx, models.PaymentCash); err != nil {
		return nil, err
	}
	q, err := o.prepare(ctx, cmd.UserID, cmd.Address.CityZoneID, true)
	if err != nil {
		return nil, err
	}

	order := models.NewOrder(q.cart, q.totals, cmd.Address, models.PaymentCash, o.cfg.Currency, o.now())
	if err := o.commit(ctx, order, q.cart); err != nil {
		return nil, apperror.Upstream(err)
	}

	log.WithFields(log.Fields{
		"order_id": order.ID.Hex(),
		"user_id":  cmd.UserID.Hex(),
		"total":    order.Total.String(),
	}).Info("Cash order created")

	o.dispatch(order)
	return order, nil
}

// InitiateCardPayment prices the cart, remembers the shipping address for the
// webhook and opens a hosted payment session. No order exists until the
// gateway confirms the payment.
func (o *Orchestrator) InitiateCardPayment(ctx context.Context, cmd Command) (*gateway.Session, error) {
	if err := o.requireMethod(ctx, models.PaymentCard); err != nil {
		return nil, err
	}
	q, err := o.prepare(ctx, cmd.UserID, cmd.Address.CityZoneID, true)
	if err != nil {
		return nil, err
	}

	user, err := o.stores.Users.FindUser(ctx, cmd.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if err := o.stores.Users.SaveShippingAddress(ctx, cmd.UserID, cmd.Address); err != nil {
		return nil, apperror.Upstream(err)
	}

	sess, err := o.gateway.CreateSession(ctx, gateway.SessionRequest{
		CartReference: q.cart.ID.Hex(),
		Amount:        q.totals.Total,
		Currency:      o.cfg.Currency,
		Description:   "Order for cart " + q.cart.ID.Hex(),
		Customer: gateway.Customer{
			Name:    user.Name,
			Email:   user.Email,
			Phone:   cmd.Address.Phone,
			Address: cmd.Address.Details,
		},
	})
	if err != nil {
		return nil, apperror.Upstream(err)
	}

	log.WithFields(log.Fields{
		"cart_id":         q.cart.ID.Hex(),
		"gateway":         o.gateway.Name(),
		"transaction_ref": sess.TransactionRef,
		"total":           q.totals.Total.String(),
	}).Info("Card payment session created")
	return sess, nil
}

// ReceiveWebhook authenticates a raw gateway callback and processes it.
// Unverifiable deliveries are ignored.
func (o *Orchestrator) ReceiveWebhook(ctx context.Context, header http.Header, body []byte) Outcome {
	n, err := o.gateway.ParseNotification(header, body)
	if err != nil {
		log.WithError(err).WithField("gateway", o.gateway.Name()).Warn("Ignoring payment notification")
		return OutcomeIgnored
	}
	return o.HandlePaymentWebhook(ctx, n)
}

// HandlePaymentWebhook creates the paid card order for an approved
// notification. Redeliveries of the same transaction are no-ops. The caller
// acknowledges the delivery regardless of the outcome.
func (o *Orchestrator) HandlePaymentWebhook(ctx context.Context, n *gateway.Notification) Outcome {
	ctx = context.WithoutCancel(ctx)
	logger := log.WithFields(log.Fields{
		"transaction_ref": n.TransactionRef,
		"cart_id":         n.CartReference,
	})

	if !n.Approved {
		logger.WithField("status", n.Status).Info("Payment not approved")
		return OutcomeIgnored
	}

	if o.locker != nil {
		key := n.TransactionRef
		acquired, err := o.locker.Lock(ctx, key)
		if err != nil {
			logger.WithError(err).Warn("Webhook lock unavailable, relying on the transaction index")
		} else if !acquired {
			logger.Info("Webhook for this transaction is already being processed")
			return OutcomeDuplicate
		} else {
			defer func() {
				if err := o.locker.Unlock(ctx, key); err != nil {
					logger.WithError(err).Warn("Failed to release webhook lock")
				}
			}()
		}
	}

	if _, err := o.stores.Orders.FindOrderByTransactionRef(ctx, n.TransactionRef); err == nil {
		logger.Info("Order already exists for transaction")
		return OutcomeDuplicate
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.WithError(err).Error("Failed to look up order by transaction")
		return OutcomeFailed
	}

	cartID, err := bson.ObjectIDFromHex(n.CartReference)
	if err != nil {
		logger.WithError(err).Warn("Notification carries an invalid cart reference")
		return OutcomeIgnored
	}
	cart, err := o.stores.Carts.FindCart(ctx, cartID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && cart.IsEmpty()) {
		logger.Info("Cart is already checked out")
		return OutcomeDuplicate
	}
	if err != nil {
		logger.WithError(err).Error("Failed to load cart")
		return OutcomeFailed
	}

	user, err := o.stores.Users.FindUser(ctx, cart.UserID)
	if err != nil {
		logger.WithError(err).Error("Failed to load cart owner")
		return OutcomeFailed
	}
	if user.ShippingAddress == nil {
		logger.WithField("user_id", user.ID.Hex()).Error("No shipping address stored for card order")
		return OutcomeFailed
	}
	address := *user.ShippingAddress

	// The payment is already captured, so stock shortfalls do not stop the order.
	q, err := o.prepare(ctx, cart.UserID, address.CityZoneID, false)
	if err != nil {
		logger.WithError(err).Error("Failed to price paid cart")
		return OutcomeFailed
	}
	if n.Currency != "" && !strings.EqualFold(n.Currency, o.cfg.Currency) {
		logger.WithFields(log.Fields{
			"paid_currency":  n.Currency,
			"order_currency": o.cfg.Currency,
		}).Error("Paid currency differs from the order currency, order not created")
		return OutcomeFailed
	}
	if !n.Amount.IsZero() && n.Amount.LessThan(q.totals.Total) {
		logger.WithFields(log.Fields{
			"paid":     n.Amount.String(),
			"computed": q.totals.Total.String(),
		}).Error("Paid amount is below the computed order total, order not created")
		return OutcomeFailed
	}
	if !n.Amount.IsZero() && !n.Amount.Equal(q.totals.Total) {
		logger.WithFields(log.Fields{
			"paid":     n.Amount.String(),
			"computed": q.totals.Total.String(),
		}).Warn("Paid amount exceeds the computed order total")
	}

	now := o.now()
	order := models.NewOrder(q.cart, q.totals, address, models.PaymentCard, o.cfg.Currency, now)
	order.TransactionRef = n.TransactionRef
	if err := order.MarkPaid(now); err != nil {
		logger.WithError(err).Error("Failed to mark order paid")
		return OutcomeFailed
	}

	if err := o.commit(ctx, order, q.cart); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			logger.Info("Concurrent delivery already created the order")
			return OutcomeDuplicate
		}
		logger.WithError(err).Error("Failed to create card order")
		return OutcomeFailed
	}

	logger.WithFields(log.Fields{
		"order_id": order.ID.Hex(),
		"total":    order.Total.String(),
	}).Info("Card order created")

	o.dispatch(order)
	return OutcomeOrderCreated
}

// Wait blocks until every pending notification has finished.
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

func (o *Orchestrator) requireMethod(ctx context.Context, method models.PaymentMethod) error {
	setting, err := o.stores.Settings.GetPaymentSetting(ctx)
	if err != nil {
		return apperror.Upstream(err)
	}
	if !setting.Allows(method) {
		return ErrPaymentMethodDisabled.WithMessage("Payment method %s is currently disabled", method)
	}
	return nil
}

// prepare loads the zone and the cart, refreshes line prices from the
// catalog and prices the result. enforceStock rejects lines exceeding stock.
func (o *Orchestrator) prepare(ctx context.Context, userID, zoneID bson.ObjectID, enforceStock bool) (*quote, error) {
	zone, err := o.stores.Zones.FindZone(ctx, zoneID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidShippingZone
	}
	if err != nil {
		return nil, apperror.Upstream(err)
	}

	cart, err := o.stores.Carts.FindCartByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		product, err := o.stores.Catalog.GetProduct(ctx, item.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound.WithMessage("Product %s no longer exists", item.ProductID.Hex())
		}
		if err != nil {
			return nil, apperror.Upstream(err)
		}
		if item.Quantity > product.Quantity {
			if enforceStock {
				return nil, ErrInsufficientStock.WithMessage("Only %d units of %s available", product.Quantity, product.Name)
			}
			log.WithFields(log.Fields{
				"product_id": product.ID.Hex(),
				"requested":  item.Quantity,
				"available":  product.Quantity,
			}).Warn("Paid order exceeds available stock")
		}
		item.RefreshPrices(product)
	}

	totals, err := pricing.Compute(cart.Items, zone, o.cfg.Policy)
	if err != nil {
		return nil, err
	}
	return &quote{cart: cart, zone: zone, totals: totals}, nil
}

// commit persists the order, decrements stock and resets the cart.
func (o *Orchestrator) commit(ctx context.Context, order *models.Order, cart *models.Cart) error {
	err := o.stores.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := o.stores.Orders.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := o.stores.Inventory.DecrementStock(ctx, order); err != nil {
			return err
		}
		cart.Reset(o.now())
		return o.stores.Carts.SaveCart(ctx, cart)
	})
	if err != nil {
		return err
	}
	if e, ok := o.stores.Inventory.(cacheEvicter); ok {
		e.EvictOrder(ctx, order)
	}
	return nil
}

// dispatch notifies in the background with its own deadline.
func (o *Orchestrator) dispatch(order *models.Order) {
	if o.notifier == nil {
		return
	}
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		logger := log.WithField("order_id", order.ID.Hex())
		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).Error("Order notification panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.NotifyTimeout)
		defer cancel()

		user, err := o.stores.Users.FindUser(ctx, order.UserID)
		if err != nil {
			logger.WithError(err).Warn("Skipping order notification, user lookup failed")
			return
		}
		if err := o.notifier.SendOrderConfirmation(ctx, order, user); err != nil {
			logger.WithError(err).Warn("Order notification failed")
		}
	}()
}

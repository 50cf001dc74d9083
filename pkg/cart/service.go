package cart

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

var (
	ErrProductNotFound   = apperror.New(apperror.KindNotFound, "product_not_found", "Product not found").WithField("product_id")
	ErrOutOfStock        = apperror.New(apperror.KindConflict, "out_of_stock", "Product is out of stock")
	ErrInsufficientStock = apperror.New(apperror.KindConflict, "insufficient_stock", "Not enough units in stock")
	ErrItemNotFound      = apperror.New(apperror.KindNotFound, "item_not_found", "Item not found in cart").WithField("item_id")
	ErrCartNotFound      = apperror.New(apperror.KindNotFound, "cart_not_found", "There is no cart for this user")
	ErrCartEmpty         = apperror.New(apperror.KindConflict, "cart_empty", "Cart is empty")
	ErrCartAlreadyEmpty  = apperror.New(apperror.KindConflict, "cart_already_empty", "Cart is already empty")
	ErrInvalidQuantity   = apperror.New(apperror.KindValidation, "invalid_quantity", "Quantity must not be negative").WithField("quantity")
)

const refreshConcurrency = 8

type Service struct {
	carts   store.Carts
	catalog store.Catalog
	now     func() time.Time
}

func NewService(carts store.Carts, catalog store.Catalog) *Service {
	return &Service{carts: carts, catalog: catalog, now: time.Now}
}

// AddItem puts one unit of productID in the user's cart, creating the cart
// on first use.
func (s *Service) AddItem(ctx context.Context, userID, productID bson.ObjectID) (*models.Cart, error) {
	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsInStock() {
		return nil, ErrOutOfStock
	}

	cart, err := s.carts.FindCartByUser(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		cart = models.NewCart(userID, s.now())
	case err != nil:
		return nil, apperror.Upstream(err)
	}

	if i := cart.IndexOfProduct(productID); i >= 0 {
		item := &cart.Items[i]
		if item.Quantity+1 > product.Quantity {
			return nil, ErrInsufficientStock.WithMessage("Only %d units available", product.Quantity)
		}
		item.Quantity++
		item.RefreshPrices(product)
	} else {
		cart.Items = append(cart.Items, models.NewCartItem(product, 1))
	}

	return s.save(ctx, cart)
}

// SetItemQuantity sets a line's quantity; zero removes the line.
func (s *Service) SetItemQuantity(ctx context.Context, userID, itemID bson.ObjectID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	cart, err := s.carts.FindCartByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCartEmpty
	}
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if cart.IsEmpty() {
		return nil, ErrCartEmpty
	}

	i := cart.IndexOfItem(itemID)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	if quantity == 0 {
		cart.RemoveAt(i)
		return s.save(ctx, cart)
	}

	item := &cart.Items[i]
	product, err := s.product(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Quantity {
		return nil, ErrInsufficientStock.WithMessage("Only %d units available", product.Quantity)
	}
	item.Quantity = quantity
	item.RefreshPrices(product)

	return s.save(ctx, cart)
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID bson.ObjectID) (*models.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := cart.IndexOfItem(itemID)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	cart.RemoveAt(i)
	return s.save(ctx, cart)
}

// Clear empties the cart without deleting it. A user without a cart is
// treated as having an empty one.
func (s *Service) Clear(ctx context.Context, userID bson.ObjectID) (*models.Cart, error) {
	cart, err := s.carts.FindCartByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCartAlreadyEmpty
	}
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	if cart.IsEmpty() {
		return nil, ErrCartAlreadyEmpty
	}
	cart.Reset(s.now())
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, apperror.Upstream(err)
	}
	return cart, nil
}

// Get returns the cart with unit and installation prices refreshed from the
// catalog. Lines whose product was removed from the catalog are dropped.
func (s *Service) Get(ctx context.Context, userID bson.ObjectID) (*models.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return cart, nil
	}

	products := make([]*models.Product, len(cart.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i := range cart.Items {
		i := i
		productID := cart.Items[i].ProductID
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, productID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperror.Upstream(err)
	}

	changed := false
	kept := cart.Items[:0]
	for i, item := range cart.Items {
		if products[i] == nil {
			log.WithFields(log.Fields{"cart_id": cart.ID.Hex(), "product_id": item.ProductID.Hex()}).
				Warn("Dropping cart line for a product that no longer exists")
			changed = true
			continue
		}
		if item.RefreshPrices(products[i]) {
			changed = true
		}
		kept = append(kept, item)
	}
	cart.Items = kept
	if !changed {
		return cart, nil
	}
	return s.save(ctx, cart)
}

func (s *Service) load(ctx context.Context, userID bson.ObjectID) (*models.Cart, error) {
	cart, err := s.carts.FindCartByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return cart, nil
}

func (s *Service) product(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	product, err := s.catalog.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return product, nil
}

func (s *Service) save(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	cart.Recalculate(s.now())
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		return nil, apperror.Upstream(err)
	}
	return cart, nil
}

package order

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

var (
	ErrOrderNotFound = apperror.New(apperror.KindNotFound, "order_not_found", "Order not found")
	ErrForbidden     = apperror.New(apperror.KindForbidden, "forbidden", "You are not allowed to access this order")
)

// Page is one page of an order listing.
type Page struct {
	Orders     []models.Order `json:"orders"`
	Total      int64          `json:"total"`
	Page       int64          `json:"page"`
	Limit      int64          `json:"limit"`
	TotalPages int64          `json:"total_pages"`
}

type Service struct {
	orders store.Orders
	now    func() time.Time
}

func NewService(orders store.Orders) *Service {
	return &Service{orders: orders, now: time.Now}
}

// Get returns the order if the caller owns it or is an admin.
func (s *Service) Get(ctx context.Context, id bson.ObjectID, caller models.Principal) (*models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *Service) ListMine(ctx context.Context, userID bson.ObjectID, page, limit int64) (*Page, error) {
	return s.List(ctx, store.OrderFilter{UserID: &userID, Page: page, Limit: limit})
}

// List returns orders matching filter, newest first.
func (s *Service) List(ctx context.Context, filter store.OrderFilter) (*Page, error) {
	filter.Normalize()
	orders, total, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return &Page{
		Orders:     orders,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

// MarkPaid records payment of a cash order on delivery.
func (s *Service) MarkPaid(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	return s.transition(ctx, id, "paid", func(o *models.Order) error {
		return o.MarkPaid(s.now())
	})
}

func (s *Service) SetDeliveryStatus(ctx context.Context, id bson.ObjectID, status string) (*models.Order, error) {
	if _, ok := models.ParseDeliveryStatus(status); !ok {
		return nil, models.ErrInvalidStatus.WithMessage("status %q is not one of new, preparing, in_transit, delivered", status)
	}
	return s.transition(ctx, id, status, func(o *models.Order) error {
		return o.SetDeliveryStatus(status, s.now())
	})
}

// Cancel cancels the user's own unpaid, undelivered order.
func (s *Service) Cancel(ctx context.Context, id, userID bson.ObjectID) (*models.Order, error) {
	return s.transition(ctx, id, "canceled", func(o *models.Order) error {
		return o.Cancel(userID, s.now())
	})
}

func (s *Service) Stats(ctx context.Context) (*models.OrderStats, error) {
	stats, err := s.orders.OrderStats(ctx)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return stats, nil
}

func (s *Service) transition(ctx context.Context, id bson.ObjectID, to string, apply func(*models.Order) error) (*models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(order); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, apperror.Upstream(err)
	}
	log.WithFields(log.Fields{"order_id": id.Hex(), "transition": to}).Info("Order updated")
	return order, nil
}

func (s *Service) find(ctx context.Context, id bson.ObjectID) (*models.Order, error) {
	order, err := s.orders.FindOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return order, nil
}

package notify

import (
	"context"
	"errors"

	"storefront.local/checkout-api/pkg/models"
)

// Notifier mirrors checkout.Notifier.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, user *models.User) error
}

// Fanout delivers to every notifier, even when an earlier one fails.
type Fanout []Notifier

func (f Fanout) SendOrderConfirmation(ctx context.Context, order *models.Order, user *models.User) error {
	var errs []error
	for _, n := range f {
		if err := n.SendOrderConfirmation(ctx, order, user); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

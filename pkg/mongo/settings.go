package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

// GetPaymentSetting returns the singleton settings document, or the defaults
// when none has been saved yet.
func (s *Store) GetPaymentSetting(ctx context.Context) (*models.PaymentSetting, error) {
	setting, err := findOne[models.PaymentSetting](ctx, s, colSettings, bson.D{})
	if errors.Is(err, store.ErrNotFound) {
		return models.DefaultPaymentSetting(), nil
	}
	return setting, err
}

func (s *Store) SavePaymentSetting(ctx context.Context, setting *models.PaymentSetting) error {
	return replaceByID(ctx, s, colSettings, setting.ID, setting, true)
}

// Package settings exposes the storefront payment toggles.
package settings

import (
	"context"

	log "github.com/sirupsen/logrus"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

type Service struct {
	settings store.Settings
}

func NewService(settings store.Settings) *Service {
	return &Service{settings: settings}
}

// Get returns the current toggles; a store without a document yields the defaults.
func (s *Service) Get(ctx context.Context) (*models.PaymentSetting, error) {
	setting, err := s.settings.GetPaymentSetting(ctx)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return setting, nil
}

// Toggle flips one toggle and persists the result.
func (s *Service) Toggle(ctx context.Context, key string) (*models.PaymentSetting, error) {
	setting, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := setting.Toggle(key); err != nil {
		return nil, err
	}
	if err := s.settings.SavePaymentSetting(ctx, setting); err != nil {
		return nil, apperror.Upstream(err)
	}
	log.WithFields(log.Fields{
		"key":             key,
		"pay_on_delivery": setting.PayOnDelivery,
		"pay_with_card":   setting.PayWithCard,
		"installments":    setting.Installments,
	}).Info("Payment setting toggled")
	return setting, nil
}

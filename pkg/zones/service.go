// Package zones manages the shipping zone directory used to price delivery.
package zones

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/store"
)

var (
	ErrZoneNotFound = apperror.New(apperror.KindNotFound, "zone_not_found", "Shipping zone not found")
	ErrZoneExists   = apperror.New(apperror.KindConflict, "zone_exists", "A shipping zone with this name already exists").WithField("name_foreign")
)

type Service struct {
	zones store.Zones
}

func NewService(zones store.Zones) *Service {
	return &Service{zones: zones}
}

func (s *Service) List(ctx context.Context) ([]models.ShippingZone, error) {
	zones, err := s.zones.ListZones(ctx)
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return zones, nil
}

func (s *Service) Get(ctx context.Context, id bson.ObjectID) (*models.ShippingZone, error) {
	zone, err := s.zones.FindZone(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, apperror.Upstream(err)
	}
	return zone, nil
}

// Create adds a zone. The key derived from the foreign name must be unused.
func (s *Service) Create(ctx context.Context, req models.CreateZoneRequest) (*models.ShippingZone, error) {
	zone, err := req.ToZone()
	if err != nil {
		return nil, err
	}
	if err := s.ensureKeyFree(ctx, zone.Key, bson.NilObjectID); err != nil {
		return nil, err
	}
	if err := s.zones.CreateZone(ctx, zone); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrZoneExists
		}
		return nil, apperror.Upstream(err)
	}
	log.WithFields(log.Fields{"zone_id": zone.ID.Hex(), "key": zone.Key}).Info("Shipping zone created")
	return zone, nil
}

func (s *Service) Update(ctx context.Context, id bson.ObjectID, req models.UpdateZoneRequest) (*models.ShippingZone, error) {
	zone, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	keyChanged, err := req.Apply(zone)
	if err != nil {
		return nil, err
	}
	if keyChanged {
		if err := s.ensureKeyFree(ctx, zone.Key, zone.ID); err != nil {
			return nil, err
		}
	}
	if err := s.zones.UpdateZone(ctx, zone); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrZoneExists
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrZoneNotFound
		}
		return nil, apperror.Upstream(err)
	}
	return zone, nil
}

func (s *Service) Delete(ctx context.Context, id bson.ObjectID) error {
	err := s.zones.DeleteZone(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrZoneNotFound
	}
	if err != nil {
		return apperror.Upstream(err)
	}
	log.WithField("zone_id", id.Hex()).Info("Shipping zone deleted")
	return nil
}

func (s *Service) ensureKeyFree(ctx context.Context, key string, self bson.ObjectID) error {
	existing, err := s.zones.FindZoneByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperror.Upstream(err)
	}
	if existing.ID != self {
		return ErrZoneExists
	}
	return nil
}

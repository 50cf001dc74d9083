package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type ShippingZone struct {
	ID                    bson.ObjectID   `json:"id" bson:"_id,omitempty"`
	Key                   string          `json:"key" bson:"key"`
	NameLocal             string          `json:"name_local" bson:"name_local"`
	NameForeign           string          `json:"name_foreign" bson:"name_foreign"`
	ShippingRate          decimal.Decimal `json:"shipping_rate" bson:"shipping_rate"`
	InstallationAvailable bool            `json:"installation_available" bson:"installation_available"`
	CreatedAt             time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" bson:"updated_at"`
}

type CreateZoneRequest struct {
	NameLocal             string          `json:"name_local" binding:"required,min=2,max=100"`
	NameForeign           string          `json:"name_foreign" binding:"required,min=2,max=100"`
	ShippingRate          decimal.Decimal `json:"shipping_rate"`
	InstallationAvailable bool            `json:"installation_available"`
}

type UpdateZoneRequest struct {
	NameLocal             *string          `json:"name_local" binding:"omitempty,min=2,max=100"`
	NameForeign           *string          `json:"name_foreign" binding:"omitempty,min=2,max=100"`
	ShippingRate          *decimal.Decimal `json:"shipping_rate"`
	InstallationAvailable *bool            `json:"installation_available"`
}

// ZoneKey derives the lookup key from the foreign-language name: its first
// word, lower-cased. "Riyadh City" and "riyadh" share the key "riyadh".
func ZoneKey(nameForeign string) string {
	fields := strings.Fields(nameForeign)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func (req *CreateZoneRequest) ToZone() (*ShippingZone, error) {
	if req.ShippingRate.IsNegative() {
		return nil, ErrInvalidShippingRate
	}
	key := ZoneKey(req.NameForeign)
	if key == "" {
		return nil, ErrInvalidZoneName
	}
	zone := &ShippingZone{
		ID:                    bson.NewObjectID(),
		Key:                   key,
		NameLocal:             strings.TrimSpace(req.NameLocal),
		NameForeign:           strings.TrimSpace(req.NameForeign),
		ShippingRate:          req.ShippingRate.Round(2),
		InstallationAvailable: req.InstallationAvailable,
	}
	zone.SetTimestamps()
	return zone, nil
}

// Apply merges the update and reports whether the key changed.
func (req *UpdateZoneRequest) Apply(z *ShippingZone) (bool, error) {
	keyChanged := false
	if req.ShippingRate != nil {
		if req.ShippingRate.IsNegative() {
			return false, ErrInvalidShippingRate
		}
		z.ShippingRate = req.ShippingRate.Round(2)
	}
	if req.NameForeign != nil {
		key := ZoneKey(*req.NameForeign)
		if key == "" {
			return false, ErrInvalidZoneName
		}
		keyChanged = key != z.Key
		z.Key = key
		z.NameForeign = strings.TrimSpace(*req.NameForeign)
	}
	if req.NameLocal != nil {
		z.NameLocal = strings.TrimSpace(*req.NameLocal)
	}
	if req.InstallationAvailable != nil {
		z.InstallationAvailable = *req.InstallationAvailable
	}
	z.SetTimestamps()
	return keyChanged, nil
}

func (z *ShippingZone) SetTimestamps() {
	now := time.Now()
	if z.CreatedAt.IsZero() {
		z.CreatedAt = now
	}
	z.UpdatedAt = now
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	SettingPayOnDelivery = "pay_on_delivery"
	SettingPayWithCard   = "pay_with_card"
	SettingInstallments  = "installments"
)

// PaymentSetting is a singleton document with the storefront's payment toggles.
type PaymentSetting struct {
	ID            bson.ObjectID `json:"id" bson:"_id,omitempty"`
	PayOnDelivery bool          `json:"pay_on_delivery" bson:"pay_on_delivery"`
	PayWithCard   bool          `json:"pay_with_card" bson:"pay_with_card"`
	Installments  bool          `json:"installments" bson:"installments"`
	UpdatedAt     time.Time     `json:"updated_at" bson:"updated_at"`
}

func DefaultPaymentSetting() *PaymentSetting {
	return &PaymentSetting{
		ID:            bson.NewObjectID(),
		PayOnDelivery: true,
		PayWithCard:   true,
		Installments:  true,
	}
}

// Toggle flips the named switch.
func (s *PaymentSetting) Toggle(key string) error {
	switch key {
	case SettingPayOnDelivery:
		s.PayOnDelivery = !s.PayOnDelivery
	case SettingPayWithCard:
		s.PayWithCard = !s.PayWithCard
	case SettingInstallments:
		s.Installments = !s.Installments
	default:
		return ErrUnknownSetting.WithMessage("unknown payment setting %q", key)
	}
	s.UpdatedAt = time.Now()
	return nil
}

func (s *PaymentSetting) Allows(method PaymentMethod) bool {
	if method == PaymentCash {
		return s.PayOnDelivery
	}
	return s.PayWithCard
}

package models

import "storefront.local/checkout-api/pkg/apperror"

var (
	ErrAlreadyPaid           = apperror.New(apperror.KindConflict, "already_paid", "Order is already paid")
	ErrAlreadyDelivered      = apperror.New(apperror.KindConflict, "already_delivered", "Order is already delivered")
	ErrInvalidStatus         = apperror.New(apperror.KindValidation, "invalid_status", "Invalid delivery status")
	ErrNotOwner              = apperror.New(apperror.KindForbidden, "not_owner", "You are not allowed to cancel this order")
	ErrCannotCancelPaid      = apperror.New(apperror.KindConflict, "cannot_cancel_paid", "Paid orders cannot be canceled")
	ErrCannotCancelDelivered = apperror.New(apperror.KindConflict, "cannot_cancel_delivered", "Delivered orders cannot be canceled")
	ErrAlreadyCanceled       = apperror.New(apperror.KindConflict, "already_canceled", "Order is already canceled")
	ErrOrderCanceled         = apperror.New(apperror.KindConflict, "order_canceled", "Order is canceled")

	ErrInvalidPrice        = apperror.New(apperror.KindValidation, "invalid_price", "Price must be positive").WithField("price")
	ErrInvalidShippingRate = apperror.New(apperror.KindValidation, "invalid_shipping_rate", "Shipping rate must not be negative").WithField("shipping_rate")
	ErrInvalidZoneName     = apperror.New(apperror.KindValidation, "invalid_zone_name", "Zone name must contain at least one word").WithField("name_foreign")
	ErrUnknownSetting      = apperror.New(apperror.KindValidation, "unknown_setting", "Unknown payment setting").WithField("key")
)

// Package pricing computes order totals from cart lines and a shipping zone.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/models"
)

// InstallationPolicy decides what happens to installation fees in a zone
// that does not offer installation.
type InstallationPolicy string

const (
	PolicyReject InstallationPolicy = "reject"
	PolicyWaive  InstallationPolicy = "waive"
)

var ErrInstallationUnsupported = apperror.New(apperror.KindConflict, "installation_unsupported",
	"Installation is not available in the selected shipping zone")

func ParsePolicy(s string) (InstallationPolicy, error) {
	switch p := InstallationPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyWaive:
		return PolicyWaive, nil
	default:
		return "", fmt.Errorf("unknown installation policy %q", s)
	}
}

// Subtotal sums unit price times quantity over all lines.
func Subtotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].LineTotal())
	}
	return total.Round(2)
}

// InstallationFees sums installation price times quantity, regardless of zone.
func InstallationFees(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].InstallationTotal())
	}
	return total.Round(2)
}

// Compute prices items for delivery into zone. It is pure: the caller is
// responsible for passing lines carrying current catalog prices.
func Compute(items []models.CartItem, zone *models.ShippingZone, policy InstallationPolicy) (models.OrderTotals, error) {
	subTotal := Subtotal(items)
	installation := InstallationFees(items)
	if !zone.InstallationAvailable {
		if installation.IsPositive() && policy != PolicyWaive {
			return models.OrderTotals{}, ErrInstallationUnsupported.WithMessage(
				"Installation is not available in %s, remove installation items or pick another zone", zone.NameForeign)
		}
		installation = decimal.Zero
	}
	shipping := zone.ShippingRate.Round(2)

	return models.OrderTotals{
		SubTotal:     subTotal,
		Installation: installation,
		Shipping:     shipping,
		Total:        subTotal.Add(installation).Add(shipping),
	}, nil
}

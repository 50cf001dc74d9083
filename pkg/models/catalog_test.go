package models_test

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront.local/checkout-api/pkg/models"
)

func TestZoneKey(t *testing.T) {
	assert.Equal(t, "riyadh", models.ZoneKey("Riyadh City"))
	assert.Equal(t, "jeddah", models.ZoneKey("  JEDDAH  "))
	assert.Equal(t, "", models.ZoneKey("   "))
}

func TestCreateZoneRequest_ToZone(t *testing.T) {
	req := models.CreateZoneRequest{NameLocal: "الرياض", NameForeign: "Riyadh Region", ShippingRate: decimal.RequireFromString("15.004")}

	zone, err := req.ToZone()

	require.NoError(t, err)
	assert.Equal(t, "riyadh", zone.Key)
	assert.Equal(t, "15", zone.ShippingRate.String())
	assert.False(t, zone.CreatedAt.IsZero())
}

func TestCreateZoneRequest_NegativeRate(t *testing.T) {
	req := models.CreateZoneRequest{NameLocal: "x", NameForeign: "Dammam", ShippingRate: decimal.NewFromInt(-1)}

	_, err := req.ToZone()

	assert.True(t, errors.Is(err, models.ErrInvalidShippingRate))
}

func TestUpdateZoneRequest_ReportsKeyChange(t *testing.T) {
	zone, err := (&models.CreateZoneRequest{NameLocal: "a", NameForeign: "Riyadh"}).ToZone()
	require.NoError(t, err)

	name := "riyadh north"
	changed, err := (&models.UpdateZoneRequest{NameForeign: &name}).Apply(zone)
	require.NoError(t, err)
	assert.False(t, changed)

	name = "Mecca"
	changed, err = (&models.UpdateZoneRequest{NameForeign: &name}).Apply(zone)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "mecca", zone.Key)
}

func TestCreateProductRequest_ToProduct(t *testing.T) {
	req := models.CreateProductRequest{
		Name:              "air conditioner",
		Title:             "Split AC 18000 BTU",
		Price:             decimal.NewFromInt(1899),
		InstallationPrice: decimal.NewFromInt(150),
		Quantity:          4,
	}

	product, err := req.ToProduct()

	require.NoError(t, err)
	assert.Equal(t, "split-ac-18000-btu", product.Slug)
	assert.True(t, strings.HasPrefix(product.SKU, "AIR-"))
	assert.True(t, product.IsInStock())
}

func TestCreateProductRequest_RejectsNonPositivePrice(t *testing.T) {
	req := models.CreateProductRequest{Name: "lamp", Title: "Desk lamp", Price: decimal.Zero}

	_, err := req.ToProduct()

	assert.True(t, errors.Is(err, models.ErrInvalidPrice))
}

func TestGenerateSKU_Format(t *testing.T) {
	req := models.CreateProductRequest{Name: "Test Product"}
	first := req.GenerateSKU()

	assert.True(t, strings.HasPrefix(first, "TES-"))
	assert.Len(t, strings.Split(first, "-"), 3)
}

func TestPaymentSetting_Toggle(t *testing.T) {
	setting := models.DefaultPaymentSetting()

	require.NoError(t, setting.Toggle(models.SettingPayOnDelivery))
	assert.False(t, setting.Allows(models.PaymentCash))
	assert.True(t, setting.Allows(models.PaymentCard))

	err := setting.Toggle("crypto")
	assert.True(t, errors.Is(err, models.ErrUnknownSetting))
}

package router_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/internal/router"
	"storefront.local/checkout-api/pkg/auth"
	"storefront.local/checkout-api/pkg/cart"
	"storefront.local/checkout-api/pkg/checkout"
	"storefront.local/checkout-api/pkg/gateway"
	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/memstore"
	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/notify"
	"storefront.local/checkout-api/pkg/order"
	"storefront.local/checkout-api/pkg/pricing"
	"storefront.local/checkout-api/pkg/redis"
	"storefront.local/checkout-api/pkg/settings"
	"storefront.local/checkout-api/pkg/store"
	"storefront.local/checkout-api/pkg/zones"
)

const serverKey = "test-server-key"

type envelope struct {
	Success bool                     `json:"success"`
	Data    json.RawMessage          `json:"data"`
	Message string                   `json:"message"`
	Errors  []global.ValidationError `json:"errors"`
}

type testServer struct {
	engine     *gin.Engine
	db         *memstore.Store
	user       *models.User
	admin      *models.User
	product    *models.Product
	zone       *models.ShippingZone
	userToken  string
	adminToken string
}

func setupRouterTest(t *testing.T, products func(*memstore.Store) store.Products) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db := memstore.New()

	user := models.NewUser("Sara", "sara@example.com", "hash", models.RoleUser)
	admin := models.NewUser("Omar", "omar@example.com", "hash", models.RoleAdmin)
	require.NoError(t, db.CreateUser(ctx, user))
	require.NoError(t, db.CreateUser(ctx, admin))

	product := &models.Product{
		ID:                bson.NewObjectID(),
		SKU:               "SPL-1",
		Slug:              "split-ac",
		Name:              "Split AC",
		Title:             "Split AC 18000 BTU",
		Price:             decimal.NewFromInt(100),
		InstallationPrice: decimal.NewFromInt(20),
		Quantity:          5,
	}
	require.NoError(t, db.CreateProduct(ctx, product))

	zone := &models.ShippingZone{ID: bson.NewObjectID(), Key: "riyadh", NameForeign: "Riyadh", ShippingRate: decimal.NewFromInt(15), InstallationAvailable: true}
	require.NoError(t, db.CreateZone(ctx, zone))

	paytabs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tran_ref":"TST-2001","redirect_url":"https://secure.paytabs.sa/payment/page/TST-2001"}`))
	}))
	t.Cleanup(paytabs.Close)
	gw := gateway.NewPayTabs(global.PayTabsConfig{BaseURL: paytabs.URL, ProfileID: 1, ServerKey: serverKey}, paytabs.Client())

	stores := checkout.Stores{
		Carts: db, Catalog: db, Inventory: db, Orders: db,
		Zones: db, Users: db, Settings: db, Tx: db,
	}
	orch := checkout.New(stores, gw, notify.Fanout{}, checkout.Config{Policy: pricing.PolicyReject, Currency: "SAR", NotifyTimeout: time.Second})
	t.Cleanup(orch.Wait)

	var catalog store.Products = db
	if products != nil {
		catalog = products(db)
	}

	issuer := auth.NewIssuer("router-secret", time.Hour)
	h := &router.Handler{
		Carts:    cart.NewService(db, catalog),
		Checkout: orch,
		Orders:   order.NewService(db),
		Zones:    zones.NewService(db),
		Settings: settings.NewService(db),
		Products: catalog,
		Tokens:   issuer,
		DB:       db,
	}
	cfg := global.Config{CORSOrigins: []string{"http://localhost:3000"}}

	userToken, err := issuer.Issue(user)
	require.NoError(t, err)
	adminToken, err := issuer.Issue(admin)
	require.NoError(t, err)

	return &testServer{
		engine:     router.NewEngine(cfg, h),
		db:         db,
		user:       user,
		admin:      admin,
		product:    product,
		zone:       zone,
		userToken:  userToken,
		adminToken: adminToken,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (s *testServer) checkoutBody() gin.H {
	return gin.H{"shipping_address": gin.H{
		"details":      "King Fahd Rd 12",
		"phone":        "0500000000",
		"city_zone_id": s.zone.ID.Hex(),
	}}
}

func (s *testServer) addToCart(t *testing.T, times int) models.Cart {
	t.Helper()
	var c models.Cart
	for i := 0; i < times; i++ {
		w, env := s.do(t, http.MethodPost, "/api/cart", s.userToken, gin.H{"product_id": s.product.ID.Hex()})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, &c))
	}
	return c
}

func signedCallback(t *testing.T, cartID, ref, status string) (*http.Request, []byte) {
	t.Helper()
	body := []byte(fmt.Sprintf(`{"tran_ref":%q,"cart_id":%q,"cart_currency":"SAR","cart_amount":"255.00","payment_result":{"response_status":%q}}`, ref, cartID, status))
	req := httptest.NewRequest(http.MethodPost, "/api/payment/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Signature", hex.EncodeToString(gateway.SignPayTabs(serverKey, body)))
	return req, body
}

func TestHealthCheck(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodGet, "/api/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCart_RequiresAuthentication(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodGet, "/api/cart", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "unauthenticated", env.Errors[0].Code)
}

func TestCart_AcceptsCookieToken(t *testing.T) {
	s := setupRouterTest(t, nil)
	s.addToCart(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: s.userToken})
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCart_GetWithoutCartIsNotFound(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodGet, "/api/cart", s.userToken, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "cart_not_found", env.Errors[0].Code)
}

func TestCart_UpdateAndRemoveItem(t *testing.T) {
	s := setupRouterTest(t, nil)
	c := s.addToCart(t, 1)
	itemID := c.Items[0].ID.Hex()

	w, env := s.do(t, http.MethodPatch, "/api/cart/"+itemID, s.userToken, gin.H{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, 3, c.TotalItems)

	w, env = s.do(t, http.MethodDelete, "/api/cart/"+itemID, s.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Empty(t, c.Items)
}

func TestCart_InvalidItemID(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodDelete, "/api/cart/not-an-id", s.userToken, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "invalid_id", env.Errors[0].Code)
	assert.Equal(t, "itemId", env.Errors[0].Field)
}

func TestCashOrder_EndToEnd(t *testing.T) {
	s := setupRouterTest(t, nil)
	s.addToCart(t, 2)

	w, env := s.do(t, http.MethodPost, "/api/orders", s.userToken, s.checkoutBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var placed models.Order
	require.NoError(t, json.Unmarshal(env.Data, &placed))
	assert.Equal(t, "255", placed.Total.String())
	assert.Equal(t, models.PaymentCash, placed.PaymentMethod)

	w, env = s.do(t, http.MethodGet, "/api/orders/"+placed.ID.Hex(), s.userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/orders/"+placed.ID.Hex(), s.adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var page order.Page
	w, env = s.do(t, http.MethodGet, "/api/orders/me", s.userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total)
}

func TestCashOrder_ValidationErrors(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodPost, "/api/orders", s.userToken, gin.H{"shipping_address": gin.H{"phone": "0500000000"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields := make([]string, 0, len(env.Errors))
	for _, e := range env.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "shipping_address.details")
}

func TestCashOrder_MalformedBody(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodPost, "/api/orders", s.userToken, []byte(`{"shipping_address":`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "invalid_body", env.Errors[0].Code)
}

func TestCashOrder_EmptyCart(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodPost, "/api/orders", s.userToken, s.checkoutBody())

	assert.Equal(t, http.StatusConflict, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "empty_cart", env.Errors[0].Code)
}

func TestCashOrder_DisabledByAdmin(t *testing.T) {
	s := setupRouterTest(t, nil)
	s.addToCart(t, 1)

	w, env := s.do(t, http.MethodPatch, "/api/payment-settings/toggle/pay_on_delivery", s.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var setting models.PaymentSetting
	require.NoError(t, json.Unmarshal(env.Data, &setting))
	assert.False(t, setting.PayOnDelivery)

	w, env = s.do(t, http.MethodPost, "/api/orders", s.userToken, s.checkoutBody())
	assert.Equal(t, http.StatusConflict, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "payment_method_disabled", env.Errors[0].Code)
}

func TestCardPayment_WebhookCreatesOrderOnce(t *testing.T) {
	s := setupRouterTest(t, nil)
	c := s.addToCart(t, 2)

	w, env := s.do(t, http.MethodPost, "/api/orders/pay-with-gateway", s.userToken, s.checkoutBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session gateway.Session
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "TST-2001", session.TransactionRef)
	assert.Contains(t, session.RedirectURL, "TST-2001")

	for i := 0; i < 2; i++ {
		req, _ := signedCallback(t, c.ID.Hex(), "TST-2001", "A")
		rec := httptest.NewRecorder()
		s.engine.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	}

	found, err := s.db.FindOrderByTransactionRef(context.Background(), "TST-2001")
	require.NoError(t, err)
	assert.True(t, found.IsPaid)
	assert.Equal(t, models.PaymentCard, found.PaymentMethod)

	_, total, err := s.db.ListOrders(context.Background(), store.OrderFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestPaymentCallback_BadSignatureStillAcknowledged(t *testing.T) {
	s := setupRouterTest(t, nil)
	c := s.addToCart(t, 1)

	req, _ := signedCallback(t, c.ID.Hex(), "TST-3001", "A")
	req.Header.Set("Signature", "deadbeef")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := s.db.FindOrderByTransactionRef(context.Background(), "TST-3001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPaymentCallback_DeclinedCreatesNoOrder(t *testing.T) {
	s := setupRouterTest(t, nil)
	c := s.addToCart(t, 1)

	req, _ := signedCallback(t, c.ID.Hex(), "TST-4001", "D")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := s.db.FindOrderByTransactionRef(context.Background(), "TST-4001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPaymentCallback_UnderpaidCartCreatesNoOrder(t *testing.T) {
	s := setupRouterTest(t, nil)
	c := s.addToCart(t, 3)
	w, _ := s.do(t, http.MethodPost, "/api/orders/pay-with-gateway", s.userToken, s.checkoutBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req, _ := signedCallback(t, c.ID.Hex(), "TST-5001", "A")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	_, err := s.db.FindOrderByTransactionRef(context.Background(), "TST-5001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrders_AdminOnlyRoutes(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodGet, "/api/orders", s.userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "admin_only", env.Errors[0].Code)

	w, _ = s.do(t, http.MethodGet, "/api/orders?is_paid=false&page=1&limit=5", s.adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/orders/stats", s.adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOrders_InvalidFilter(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodGet, "/api/orders?is_paid=maybe", s.adminToken, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "is_paid", env.Errors[0].Field)
}

func TestOrders_LifecycleThroughHTTP(t *testing.T) {
	s := setupRouterTest(t, nil)
	s.addToCart(t, 1)
	_, env := s.do(t, http.MethodPost, "/api/orders", s.userToken, s.checkoutBody())
	var placed models.Order
	require.NoError(t, json.Unmarshal(env.Data, &placed))
	base := "/api/orders/" + placed.ID.Hex()

	w, env := s.do(t, http.MethodPatch, base+"/status/shipped", s.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "invalid_status", env.Errors[0].Code)

	w, _ = s.do(t, http.MethodPatch, base+"/status/delivered", s.adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodPatch, base+"/status/delivered", s.adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "already_delivered", env.Errors[0].Code)

	w, env = s.do(t, http.MethodPatch, base+"/cancel", s.userToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "cannot_cancel_delivered", env.Errors[0].Code)

	w, _ = s.do(t, http.MethodPatch, base+"/pay", s.adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOrders_OtherUserIsForbidden(t *testing.T) {
	s := setupRouterTest(t, nil)
	s.addToCart(t, 1)
	_, env := s.do(t, http.MethodPost, "/api/orders", s.userToken, s.checkoutBody())
	var placed models.Order
	require.NoError(t, json.Unmarshal(env.Data, &placed))

	stranger := models.NewUser("Ali", "ali@example.com", "hash", models.RoleUser)
	require.NoError(t, s.db.CreateUser(context.Background(), stranger))
	token, err := auth.NewIssuer("router-secret", time.Hour).Issue(stranger)
	require.NoError(t, err)

	w, _ := s.do(t, http.MethodGet, "/api/orders/"+placed.ID.Hex(), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/api/orders/"+placed.ID.Hex()+"/cancel", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestShippingZones_AdminCRUD(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodPost, "/api/shipping-zones", s.adminToken, gin.H{
		"name_local":    "جدة",
		"name_foreign":  "Jeddah City",
		"shipping_rate": "25",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var zone models.ShippingZone
	require.NoError(t, json.Unmarshal(env.Data, &zone))
	assert.Equal(t, "jeddah", zone.Key)

	w, env = s.do(t, http.MethodPost, "/api/shipping-zones", s.adminToken, gin.H{
		"name_local":    "جدة",
		"name_foreign":  "jeddah city",
		"shipping_rate": "30",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/shipping-zones/"+zone.ID.Hex(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/shipping-zones/"+zone.ID.Hex(), s.userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/shipping-zones/"+zone.ID.Hex(), s.adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/shipping-zones/"+zone.ID.Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProducts_CacheHeader(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisclient.NewClient(&redisclient.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := setupRouterTest(t, func(db *memstore.Store) store.Products {
		return redis.NewCachedCatalog(db, client, time.Hour)
	})
	path := "/api/products/" + s.product.ID.Hex()

	w, env := s.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var p models.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "SPL-1", p.SKU)

	w, _ = s.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w, env = s.do(t, http.MethodGet, "/api/products/recent", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), s.product.ID.Hex())

	w, _ = s.do(t, http.MethodPatch, path, s.adminToken, gin.H{"price": "90"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "90", p.Price.String())
}

func TestProducts_NotFoundAndCreate(t *testing.T) {
	s := setupRouterTest(t, nil)

	w, env := s.do(t, http.MethodGet, "/api/products/"+bson.NewObjectID().Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "product_not_found", env.Errors[0].Code)

	w, env = s.do(t, http.MethodPost, "/api/products", s.adminToken, gin.H{
		"name":               "Window AC",
		"title":              "Window AC 12000 BTU",
		"price":              "850",
		"installation_price": "60",
		"quantity":           4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p models.Product
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "window-ac-12000-btu", p.Slug)

	w, _ = s.do(t, http.MethodGet, "/api/products?page=1&limit=10", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

package router

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"storefront.local/checkout-api/pkg/apperror"
	"storefront.local/checkout-api/pkg/auth"
	"storefront.local/checkout-api/pkg/cart"
	"storefront.local/checkout-api/pkg/checkout"
	"storefront.local/checkout-api/pkg/global"
	"storefront.local/checkout-api/pkg/models"
	"storefront.local/checkout-api/pkg/order"
	"storefront.local/checkout-api/pkg/settings"
	"storefront.local/checkout-api/pkg/store"
	"storefront.local/checkout-api/pkg/zones"
)

const maxCallbackBody = 1 << 20

type Pinger interface {
	Ping(ctx context.Context) error
}

// productLookup is implemented by the Redis cached catalog.
type productLookup interface {
	LookupProduct(ctx context.Context, id bson.ObjectID) (*models.Product, bool, error)
	RecentProducts(ctx context.Context, n int64) ([]string, error)
}

// Handler holds the services the HTTP surface delegates to.
type Handler struct {
	Carts    *cart.Service
	Checkout *checkout.Orchestrator
	Orders   *order.Service
	Zones    *zones.Service
	Settings *settings.Service
	Products store.Products
	Tokens   *auth.Issuer
	DB       Pinger
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.DB.Ping(c.Request.Context()); err != nil {
		log.WithError(err).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, global.ErrorResponse("Database connection failed", nil))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]string{"status": "OK", "database": "Connected"}))
}

// Products

func (h *Handler) ListProducts(c *gin.Context) {
	page, limit, ok := pagination(c)
	if !ok {
		return
	}
	products, total, err := h.Products.ListProducts(c.Request.Context(), page, limit)
	if err != nil {
		_ = c.Error(apperror.Upstream(err))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{
		"products": products,
		"pagination": global.Pagination{
			Total:       total,
			CurrentPage: page,
			TotalPages:  (total + limit - 1) / limit,
			Limit:       limit,
		},
	}))
}

// GetProduct serves from the cache when the catalog has one and reports
// HIT or MISS in X-Cache.
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var (
		product *models.Product
		err     error
	)
	if lookup, cached := h.Products.(productLookup); cached {
		var hit bool
		product, hit, err = lookup.LookupProduct(ctx, id)
		if err == nil {
			c.Header("X-Cache", cacheHeader(hit))
		}
	} else {
		product, err = h.Products.GetProduct(ctx, id)
	}
	if err != nil {
		_ = c.Error(productError(err))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(product))
}

func (h *Handler) RecentProducts(c *gin.Context) {
	ids := []string{}
	if lookup, cached := h.Products.(productLookup); cached {
		recent, err := lookup.RecentProducts(c.Request.Context(), 10)
		if err != nil {
			log.WithError(err).Warn("Recent products unavailable")
		} else {
			ids = recent
		}
	}
	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{"product_ids": ids}))
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := req.ToProduct()
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.Products.CreateProduct(c.Request.Context(), product); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			_ = c.Error(ErrProductExists)
			return
		}
		_ = c.Error(apperror.Upstream(err))
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("Product created", product))
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	product, err := h.Products.GetProduct(ctx, id)
	if err != nil {
		_ = c.Error(productError(err))
		return
	}
	if err := req.Apply(product); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.Products.UpdateProduct(ctx, product); err != nil {
		_ = c.Error(productError(err))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(product))
}

// Cart

func (h *Handler) AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if !bindJSON(c, &req) {
		return
	}
	productID, err := bson.ObjectIDFromHex(req.ProductID)
	if err != nil {
		_ = c.Error(apperror.ErrInvalidID.WithField("product_id"))
		return
	}
	userCart, err := h.Carts.AddItem(c.Request.Context(), currentPrincipal(c).UserID, productID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("Product added to cart", userCart))
}

func (h *Handler) GetCart(c *gin.Context) {
	userCart, err := h.Carts.Get(c.Request.Context(), currentPrincipal(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(userCart))
}

func (h *Handler) ClearCart(c *gin.Context) {
	userCart, err := h.Carts.Clear(c.Request.Context(), currentPrincipal(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Cart cleared", userCart))
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	itemID, ok := objectIDParam(c, "itemId")
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	userCart, err := h.Carts.SetItemQuantity(c.Request.Context(), currentPrincipal(c).UserID, itemID, *req.Quantity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(userCart))
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	itemID, ok := objectIDParam(c, "itemId")
	if !ok {
		return
	}
	userCart, err := h.Carts.RemoveItem(c.Request.Context(), currentPrincipal(c).UserID, itemID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(userCart))
}

// Checkout

func (h *Handler) CreateCashOrder(c *gin.Context) {
	var req models.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	placed, err := h.Checkout.CreateCashOrder(c.Request.Context(), checkout.Command{
		UserID:  currentPrincipal(c).UserID,
		Address: req.ShippingAddress,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("Order created", placed))
}

func (h *Handler) PayWithGateway(c *gin.Context) {
	var req models.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.Checkout.InitiateCardPayment(c.Request.Context(), checkout.Command{
		UserID:  currentPrincipal(c).UserID,
		Address: req.ShippingAddress,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(session))
}

// PaymentCallback always acknowledges so the gateway stops retrying; the
// outcome is only logged.
func (h *Handler) PaymentCallback(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody))
	if err != nil {
		log.WithError(err).Warn("Payment callback body unreadable")
	} else {
		outcome := h.Checkout.ReceiveWebhook(c.Request.Context(), c.Request.Header, body)
		log.WithFields(log.Fields{
			"request_id": c.GetString(requestIDKey),
			"outcome":    outcome,
		}).Info("Payment callback processed")
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Orders

func (h *Handler) ListOrders(c *gin.Context) {
	page, limit, ok := pagination(c)
	if !ok {
		return
	}
	filter := store.OrderFilter{Page: page, Limit: limit}
	for name, dst := range map[string]**bool{
		"is_paid":      &filter.IsPaid,
		"is_delivered": &filter.IsDelivered,
		"is_canceled":  &filter.IsCanceled,
	} {
		v, ok := boolQuery(c, name)
		if !ok {
			return
		}
		*dst = v
	}

	result, err := h.Orders.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(result))
}

func (h *Handler) ListMyOrders(c *gin.Context) {
	page, limit, ok := pagination(c)
	if !ok {
		return
	}
	result, err := h.Orders.ListMine(c.Request.Context(), currentPrincipal(c).UserID, page, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(result))
}

func (h *Handler) OrderStats(c *gin.Context) {
	stats, err := h.Orders.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(stats))
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	found, err := h.Orders.Get(c.Request.Context(), id, currentPrincipal(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(found))
}

func (h *Handler) MarkOrderPaid(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	updated, err := h.Orders.MarkPaid(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(updated))
}

func (h *Handler) SetDeliveryStatus(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	updated, err := h.Orders.SetDeliveryStatus(c.Request.Context(), id, c.Param("status"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(updated))
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	updated, err := h.Orders.Cancel(c.Request.Context(), id, currentPrincipal(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Order canceled", updated))
}

// Shipping zones

func (h *Handler) ListZones(c *gin.Context) {
	list, err := h.Zones.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(list))
}

func (h *Handler) GetZone(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	zone, err := h.Zones.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(zone))
}

func (h *Handler) CreateZone(c *gin.Context) {
	var req models.CreateZoneRequest
	if !bindJSON(c, &req) {
		return
	}
	zone, err := h.Zones.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, global.MessageResponse("Shipping zone created", zone))
}

func (h *Handler) UpdateZone(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateZoneRequest
	if !bindJSON(c, &req) {
		return
	}
	zone, err := h.Zones.Update(c.Request.Context(), id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(zone))
}

func (h *Handler) DeleteZone(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.Zones.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.MessageResponse("Shipping zone deleted", nil))
}

// Payment settings

func (h *Handler) GetPaymentSettings(c *gin.Context) {
	setting, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(setting))
}

func (h *Handler) TogglePaymentSetting(c *gin.Context) {
	setting, err := h.Settings.Toggle(c.Request.Context(), c.Param("key"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(setting))
}

// helpers

var (
	ErrProductExists = apperror.New(apperror.KindConflict, "product_exists", "A product with this slug or SKU already exists")
	ErrInvalidQuery  = apperror.New(apperror.KindValidation, "invalid_query", "Query parameter is not valid")
)

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			_ = c.Error(verrs)
		} else {
			_ = c.Error(ErrInvalidBody.Wrap(err))
		}
		return false
	}
	return true
}

func objectIDParam(c *gin.Context, name string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(c.Param(name))
	if err != nil {
		_ = c.Error(apperror.ErrInvalidID.WithField(name))
		return bson.NilObjectID, false
	}
	return id, true
}

func pagination(c *gin.Context) (page, limit int64, ok bool) {
	page, limit = 1, 10
	if raw := c.Query("page"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 1 {
			_ = c.Error(ErrInvalidQuery.WithField("page"))
			return 0, 0, false
		}
		page = v
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 1 || v > 100 {
			_ = c.Error(ErrInvalidQuery.WithField("limit"))
			return 0, 0, false
		}
		limit = v
	}
	return page, limit, true
}

func boolQuery(c *gin.Context, name string) (*bool, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		_ = c.Error(ErrInvalidQuery.WithField(name))
		return nil, false
	}
	return &v, true
}

func productError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return cart.ErrProductNotFound.WithField("id")
	}
	return apperror.Upstream(err)
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront.local/checkout-api/pkg/global"
)

// NewEngine builds the gin engine with the shared middleware and all routes.
func NewEngine(cfg global.Config, h *Handler) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Logger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Cache", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(ErrorHandler())

	InitializeRoutes(router, h)
	return router
}

func InitializeRoutes(router *gin.Engine, h *Handler) {
	authenticated := Authenticate(h.Tokens)
	admin := RequireAdmin()

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		// Gateways call back without credentials; the signature is the auth.
		api.POST("/payment/callback", h.PaymentCallback)

		products := api.Group("/products")
		{
			products.GET("", h.ListProducts)
			products.GET("/recent", h.RecentProducts)
			products.GET("/:id", h.GetProduct)
			products.POST("", authenticated, admin, h.CreateProduct)
			products.PATCH("/:id", authenticated, admin, h.UpdateProduct)
		}

		cart := api.Group("/cart", authenticated)
		{
			cart.POST("", h.AddToCart)
			cart.GET("", h.GetCart)
			cart.PATCH("/clear", h.ClearCart)
			cart.PATCH("/:itemId", h.UpdateCartItem)
			cart.DELETE("/:itemId", h.RemoveFromCart)
		}

		orders := api.Group("/orders", authenticated)
		{
			orders.POST("", h.CreateCashOrder)
			orders.POST("/pay-with-gateway", h.PayWithGateway)
			orders.GET("", admin, h.ListOrders)
			orders.GET("/me", h.ListMyOrders)
			orders.GET("/stats", admin, h.OrderStats)
			orders.GET("/:id", h.GetOrder)
			orders.PATCH("/:id/pay", admin, h.MarkOrderPaid)
			orders.PATCH("/:id/status/:status", admin, h.SetDeliveryStatus)
			orders.PATCH("/:id/cancel", h.CancelOrder)
		}

		zones := api.Group("/shipping-zones")
		{
			zones.GET("", h.ListZones)
			zones.GET("/:id", h.GetZone)
			zones.POST("", authenticated, admin, h.CreateZone)
			zones.PATCH("/:id", authenticated, admin, h.UpdateZone)
			zones.DELETE("/:id", authenticated, admin, h.DeleteZone)
		}

		settings := api.Group("/payment-settings")
		{
			settings.GET("", h.GetPaymentSettings)
			settings.PATCH("/toggle/:key", authenticated, admin, h.TogglePaymentSetting)
		}
	}
}

package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/handlers"
	"github.com/shopcore/storefront/internal/handlers/cart"
	"github.com/shopcore/storefront/internal/service/token"
)

type Deps struct {
	DB              *gorm.DB
	AuthHandler     *handlers.AuthHandler
	ProductHandler  *handlers.ProductHandler
	CartHandler     *cart.CartHandler
	AddressHandler  *handlers.AddressHandler
	CheckoutHandler *handlers.CheckoutHandler
	OrderHandler    *handlers.OrderHandler
	WebhookHandler  *handlers.WebhookHandler
	SearchHandler   *handlers.SearchHandler
	ServiceHandler  *token.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	// The provider signs the raw body, so this route stays outside any
	// middleware that might touch it.
	e.POST("/webhook", d.WebhookHandler.HandleWebhook)

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)
	v1.GET("/search", d.SearchHandler.Search)

	admin := v1.Group("/admin", d.ServiceHandler.AutoRefreshMiddlewareAdmin)

	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)

	products := v1.Group("/products")

	products.GET("/:id", d.ProductHandler.GetProduct)
	products.GET("", d.ProductHandler.GetProducts)

	// Cart routes resolve their own identity (user token or anonymous
	// cart cookie), so they are not gated by the auth middleware.
	cartGroup := v1.Group("/cart")

	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("", d.CartHandler.AddToCart)
	cartGroup.POST("/merge", d.CartHandler.MergeCart)
	cartGroup.PATCH("/:productID", d.CartHandler.SetQuantity)
	cartGroup.DELETE("/:productID", d.CartHandler.RemoveFromCart)
	cartGroup.DELETE("", d.CartHandler.ClearCart)

	checkout := v1.Group("/checkout", d.ServiceHandler.AutoRefreshMiddleware)

	checkout.POST("/create", d.CheckoutHandler.CreateSession)
	checkout.GET("/session", d.CheckoutHandler.GetSession)

	addresses := v1.Group("/addresses", d.ServiceHandler.AutoRefreshMiddleware)

	addresses.GET("", d.AddressHandler.ListAddresses)
	addresses.POST("", d.AddressHandler.CreateAddress)
	addresses.DELETE("/:id", d.AddressHandler.DeleteAddress)

	ordersGroup := v1.Group("/orders", d.ServiceHandler.AutoRefreshMiddleware)

	ordersGroup.GET("", d.OrderHandler.ListOrders)
	ordersGroup.GET("/:id", d.OrderHandler.GetOrder)
	ordersGroup.POST("/:id/cancel", d.OrderHandler.CancelOrder)
}

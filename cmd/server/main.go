package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shopcore/storefront/internal/cart"
	"github.com/shopcore/storefront/internal/checkout"
	"github.com/shopcore/storefront/internal/config"
	"github.com/shopcore/storefront/internal/es"
	"github.com/shopcore/storefront/internal/handlers"
	carthandlers "github.com/shopcore/storefront/internal/handlers/cart"
	"github.com/shopcore/storefront/internal/logging"
	"github.com/shopcore/storefront/internal/mykafka"
	"github.com/shopcore/storefront/internal/orders"
	"github.com/shopcore/storefront/internal/payment"
	"github.com/shopcore/storefront/internal/service/token"
	httpserver "github.com/shopcore/storefront/internal/transport/http"
	"github.com/shopcore/storefront/internal/validation"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	brokers := []string{configuration.KAFKA_ADDRESS}
	prod, err := mykafka.NewProducer(brokers)
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	provider := payment.NewClient(configuration.STRIPE_SECRET_KEY, configuration.STRIPE_API_URL)

	cartService := &cart.Service{DB: db}
	checkoutService := &checkout.Service{
		DB:       db,
		Provider: provider,
		Config: checkout.Config{
			Currency:              configuration.CURRENCY,
			SuccessURL:            configuration.CHECKOUT_SUCCESS_URL,
			CancelURL:             configuration.CHECKOUT_CANCEL_URL,
			FreeShippingThreshold: configuration.FREE_SHIPPING_THRESHOLD,
			ShippingFee:           configuration.SHIPPING_FEE,
		},
	}
	materializer := &orders.Materializer{DB: db, Provider: provider, Log: logger}
	tracker := &orders.Tracker{DB: db, Log: logger}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	e.Validator = validation.New()

	deps := httpserver.Deps{
		DB:          db,
		AuthHandler: &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: prod},
		ProductHandler: &handlers.ProductHandler{
			DB: db, Producer: prod, ES: esClient, Index: "product", JWTSecret: jwtSecret,
		},
		CartHandler:     &carthandlers.CartHandler{Cart: cartService, Producer: prod, JWTSecret: jwtSecret},
		AddressHandler:  &handlers.AddressHandler{DB: db},
		CheckoutHandler: &handlers.CheckoutHandler{DB: db, Checkout: checkoutService},
		OrderHandler:    &handlers.OrderHandler{DB: db, Tracker: tracker, Producer: prod},
		WebhookHandler: &handlers.WebhookHandler{
			Secret:       configuration.STRIPE_WEBHOOK_SECRET,
			Materializer: materializer,
			Tracker:      tracker,
		},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: "product"},
		ServiceHandler: &token.TokenService{DB: db, RefreshSecret: refreshSecret, JWTSecret: jwtSecret},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}

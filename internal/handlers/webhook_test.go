package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/models"
	"github.com/shopcore/storefront/internal/orders"
	"github.com/shopcore/storefront/internal/payment"
)

const webhookSecret = "whsec_test"

type stubProvider struct {
	sessions map[string]*payment.CheckoutSession
}

func (s *stubProvider) CreateCheckoutSession(_ context.Context, _ payment.SessionParams) (*payment.CheckoutSession, error) {
	return nil, payment.ErrUpstreamProvider
}

func (s *stubProvider) RetrieveSession(_ context.Context, id string) (*payment.CheckoutSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, payment.ErrUpstreamProvider
	}
	return sess, nil
}

func initWebhookHandler(t *testing.T, provider payment.Provider) (*WebhookHandler, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.CartItem{}, &models.Order{}, &models.OrderItem{},
	))
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return &WebhookHandler{
		Secret:       webhookSecret,
		Materializer: &orders.Materializer{DB: db, Provider: provider, Log: log},
		Tracker:      &orders.Tracker{DB: db, Log: log},
	}, db
}

func signedWebhookRequest(payload, sigHeader string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Stripe-Signature", sigHeader)
	return req, httptest.NewRecorder()
}

func sign(payload string) string {
	now := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.%s", now, payload)
	return fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil)))
}

func TestWebhookRejectsBadSignatureWithoutWrites(t *testing.T) {
	provider := &stubProvider{sessions: map[string]*payment.CheckoutSession{
		"cs_1": {
			ID: "cs_1", Currency: "usd", AmountTotal: 2500,
			Metadata: map[string]string{"user_id": "7", "shipping_address_id": "3"},
		},
	}}
	h, db := initWebhookHandler(t, provider)
	e := echo.New()

	payload := `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`
	req, rec := signedWebhookRequest(payload, "t=123,v1=deadbeef")
	err := h.HandleWebhook(e.NewContext(req, rec))

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestWebhookSessionCompletedMaterializesOrder(t *testing.T) {
	provider := &stubProvider{sessions: map[string]*payment.CheckoutSession{
		"cs_1": {
			ID: "cs_1", Currency: "usd", AmountTotal: 2500, PaymentIntent: "pi_1",
			Metadata: map[string]string{"user_id": "7", "shipping_address_id": "3"},
			LineItems: payment.LineItemList{Data: []payment.LineItem{
				{Quantity: 2, Price: payment.Price{UnitAmount: 1000, Metadata: map[string]string{"product_id": "1"}}},
			}},
		},
	}}
	h, db := initWebhookHandler(t, provider)
	require.NoError(t, db.Create(&models.Product{Name: "widget", Description: "d", Price: 10, Inventory: 5, Active: true}).Error)
	e := echo.New()

	payload := `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`
	req, rec := signedWebhookRequest(payload, sign(payload))
	require.NoError(t, h.HandleWebhook(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"received":true}`, rec.Body.String())

	var order models.Order
	require.NoError(t, db.Where("stripe_session_id = ?", "cs_1").First(&order).Error)
	require.Equal(t, float64(25), order.Total)
}

func TestWebhookPaymentIntentLifecycle(t *testing.T) {
	h, db := initWebhookHandler(t, &stubProvider{})
	require.NoError(t, db.Create(&models.Order{
		UserID: 7, Status: models.OrderStatusPending, Total: 25, Currency: "usd",
		StripeSessionID: "cs_1", StripePaymentIntentID: "pi_1",
	}).Error)
	e := echo.New()

	payload := `{"id":"evt_2","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","status":"succeeded"}}}`
	req, rec := signedWebhookRequest(payload, sign(payload))
	require.NoError(t, h.HandleWebhook(e.NewContext(req, rec)))

	var order models.Order
	require.NoError(t, db.Where("stripe_payment_intent_id = ?", "pi_1").First(&order).Error)
	require.Equal(t, models.OrderStatusProcessing, order.Status)
}

func TestWebhookUnknownEventTypeIsAccepted(t *testing.T) {
	h, _ := initWebhookHandler(t, &stubProvider{})
	e := echo.New()

	payload := `{"id":"evt_3","type":"customer.created","data":{"object":{}}}`
	req, rec := signedWebhookRequest(payload, sign(payload))
	require.NoError(t, h.HandleWebhook(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookMissingMetadataIsBadRequest(t *testing.T) {
	provider := &stubProvider{sessions: map[string]*payment.CheckoutSession{
		"cs_bad": {ID: "cs_bad", Metadata: map[string]string{}},
	}}
	h, db := initWebhookHandler(t, provider)
	e := echo.New()

	payload := `{"id":"evt_4","type":"checkout.session.completed","data":{"object":{"id":"cs_bad"}}}`
	req, rec := signedWebhookRequest(payload, sign(payload))
	err := h.HandleWebhook(e.NewContext(req, rec))

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}

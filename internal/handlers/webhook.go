package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shopcore/storefront/internal/orders"
	"github.com/shopcore/storefront/internal/payment"
)

const signatureHeader = "Stripe-Signature"

// WebhookHandler is the inbound notification channel from the payment
// provider. Delivery is at-least-once and unordered; every branch below
// must be idempotent.
type WebhookHandler struct {
	Secret       string
	Materializer *orders.Materializer
	Tracker      *orders.Tracker
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}

	event, err := payment.ConstructEvent(body, c.Request().Header.Get(signatureHeader), h.Secret)
	if err != nil {
		if errors.Is(err, payment.ErrSignatureVerification) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	switch event.Type {
	case "checkout.session.completed":
		var session struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Object, &session); err != nil || session.ID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed session object")
		}
		if err := h.Materializer.HandleSessionCompleted(ctx, session.ID); err != nil {
			return webhookError(err)
		}

	case "payment_intent.succeeded":
		intent, err := decodeIntent(event.Data.Object)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed payment intent")
		}
		if err := h.Tracker.HandlePaymentSucceeded(ctx, intent.ID); err != nil {
			return webhookError(err)
		}

	case "payment_intent.payment_failed":
		intent, err := decodeIntent(event.Data.Object)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed payment intent")
		}
		if err := h.Tracker.HandlePaymentFailed(ctx, intent.ID); err != nil {
			return webhookError(err)
		}

	default:
		// Unknown event types are accepted so the provider can grow its
		// vocabulary without breaking us.
		c.Logger().Infof("unhandled webhook event type: %s", event.Type)
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func decodeIntent(raw json.RawMessage) (*payment.PaymentIntent, error) {
	var intent payment.PaymentIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, err
	}
	if intent.ID == "" {
		return nil, errors.New("missing intent id")
	}
	return &intent, nil
}

func webhookError(err error) error {
	switch {
	case errors.Is(err, orders.ErrMissingMetadata):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrUpstreamProvider):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

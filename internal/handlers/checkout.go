package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shopcore/storefront/internal/checkout"
	"github.com/shopcore/storefront/internal/models"
	"github.com/shopcore/storefront/internal/payment"
	"gorm.io/gorm"
)

type CheckoutHandler struct {
	DB       *gorm.DB
	Checkout *checkout.Service
}

type checkoutRequest struct {
	Lines             []checkout.LineInput `json:"cart_items" validate:"required,min=1,dive"`
	ShippingAddressID uint                 `json:"shipping_address_id" validate:"required"`
	BillingAddressID  uint                 `json:"billing_address_id"`
	Metadata          map[string]string    `json:"metadata"`
}

func (h *CheckoutHandler) CreateSession(c echo.Context) error {
	uid := UserID(c)
	if uid == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}

	result, err := h.Checkout.CreateSession(c.Request().Context(), checkout.Request{
		UserID:            uid,
		CustomerEmail:     user.Email,
		Lines:             req.Lines,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		Metadata:          req.Metadata,
	})
	if err != nil {
		return checkoutError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) GetSession(c echo.Context) error {
	uid := UserID(c)
	if uid == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	sessionID := c.QueryParam("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id required")
	}

	session, err := h.Checkout.SessionSummary(c.Request().Context(), uid, sessionID)
	if err != nil {
		return checkoutError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":           session.ID,
		"status":       session.Status,
		"amount_total": session.AmountTotal,
		"currency":     session.Currency,
		"expires_at":   session.ExpiresAt,
	})
}

func checkoutError(err error) error {
	switch {
	case errors.Is(err, checkout.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrPriceMismatch),
		errors.Is(err, checkout.ErrProductUnavailable),
		errors.Is(err, checkout.ErrInsufficientInventory):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrAddressNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, payment.ErrUpstreamProvider):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

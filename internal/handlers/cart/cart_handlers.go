package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	cartsvc "github.com/shopcore/storefront/internal/cart"
	"github.com/shopcore/storefront/internal/mykafka"
)

type CartHandler struct {
	Cart      *cartsvc.Service
	Producer  *mykafka.Producer
	JWTSecret []byte
}

// GetCart is the explicit-reload path: lines come back re-priced and
// re-clamped, with the corrections listed as warnings.
func (h *CartHandler) GetCart(c echo.Context) error {
	id := h.identity(c, false)
	if id == (cartsvc.Identity{}) {
		return c.JSON(http.StatusOK, echo.Map{"items": []any{}, "warnings": []any{}})
	}

	lines, warnings, err := h.Cart.VerifiedLines(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"items": lines, "warnings": warnings})
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id required")
	}

	id := h.identity(c, true)
	item, err := h.Cart.AddLine(c.Request().Context(), id, req.ProductID, req.Quantity)
	if err != nil {
		return cartError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_line_added",
		"identity":  identityKey(id),
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) SetQuantity(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("productID"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id := h.identity(c, true)
	item, err := h.Cart.SetQuantity(c.Request().Context(), id, uint(productID), req.Quantity)
	if err != nil {
		return cartError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_quantity_set",
		"identity":  identityKey(id),
		"productID": productID,
		"quantity":  req.Quantity,
	})
	if item == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("productID"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	id := h.identity(c, false)
	if id != (cartsvc.Identity{}) {
		if err := h.Cart.RemoveLine(c.Request().Context(), id, uint(productID)); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.publish(c, map[string]any{
			"type":      "cart_line_removed",
			"identity":  identityKey(id),
			"productID": productID,
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	id := h.identity(c, false)
	if id != (cartsvc.Identity{}) {
		if err := h.Cart.Clear(c.Request().Context(), id); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.publish(c, map[string]any{
			"type":     "cart_cleared",
			"identity": identityKey(id),
		})
	}
	return c.NoContent(http.StatusNoContent)
}

// MergeCart migrates the device cart into the signed-in user's cart. It is
// called once after sign-in; rerunning it with no anonymous cart left is a
// no-op that returns the verified server cart.
func (h *CartHandler) MergeCart(c echo.Context) error {
	userID, err := GetID(c, h.JWTSecret)
	if err != nil {
		return err
	}

	cookie, err := c.Cookie(cartTokenCookie)
	if err != nil || cookie.Value == "" {
		lines, warnings, err := h.Cart.VerifiedLines(c.Request().Context(), cartsvc.Identity{UserID: userID})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, echo.Map{"items": lines, "warnings": warnings})
	}

	lines, warnings, err := h.Cart.MergeAnonymousIntoUser(c.Request().Context(), cookie.Value, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	dropCartTokenCookie(c)

	h.publish(c, map[string]any{
		"type":     "cart_merged",
		"identity": identityKey(cartsvc.Identity{UserID: userID}),
	})
	return c.JSON(http.StatusOK, echo.Map{"items": lines, "warnings": warnings})
}

func cartError(err error) error {
	switch {
	case errors.Is(err, cartsvc.ErrProductUnavailable):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, cartsvc.ErrInsufficientInventory):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

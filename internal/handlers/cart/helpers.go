package cart

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	cartsvc "github.com/shopcore/storefront/internal/cart"
)

const cartTokenCookie = "cartToken"

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["identity"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// GetID extracts the authenticated user id from the access token cookie.
func GetID(c echo.Context, jwtSecret []byte) (uint, error) {
	cookie, err := c.Cookie("accessToken")
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing auth cookie")
	}
	tokenString := cookie.Value
	if tokenString == "" {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid token: "+err.Error())
	}
	if !token.Valid {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	subRaw, ok := claims["sub"].(float64)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid subject claim")
	}

	return uint(subRaw), nil
}

// identity resolves who owns the cart for this request: the signed-in user
// when a valid access token is present, otherwise the device's cart token
// cookie. With mint set, a missing cookie is created on the fly so
// anonymous shoppers can start a cart.
func (h *CartHandler) identity(c echo.Context, mint bool) cartsvc.Identity {
	if userID, err := GetID(c, h.JWTSecret); err == nil {
		return cartsvc.Identity{UserID: userID}
	}

	if cookie, err := c.Cookie(cartTokenCookie); err == nil && cookie.Value != "" {
		return cartsvc.Identity{CartToken: cookie.Value}
	}
	if !mint {
		return cartsvc.Identity{}
	}

	tok := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     cartTokenCookie,
		Value:    tok,
		Path:     "/",
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return cartsvc.Identity{CartToken: tok}
}

func dropCartTokenCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     cartTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-1 * time.Hour),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func identityKey(id cartsvc.Identity) string {
	if id.Anonymous() {
		return "anon:" + id.CartToken
	}
	return fmt.Sprintf("user:%d", id.UserID)
}

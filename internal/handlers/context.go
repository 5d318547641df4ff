package handlers

import "github.com/labstack/echo/v4"

// UserID reads the authenticated user id placed into the request context
// by the auto-refresh middleware. Zero means unauthenticated.
func UserID(c echo.Context) uint {
	if v, ok := c.Get("userID").(uint); ok {
		return v
	}
	return 0
}

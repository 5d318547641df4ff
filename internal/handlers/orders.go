package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/models"
	"github.com/shopcore/storefront/internal/mykafka"
	"github.com/shopcore/storefront/internal/orders"
	"github.com/shopcore/storefront/internal/util"
)

type OrderHandler struct {
	DB       *gorm.DB
	Tracker  *orders.Tracker
	Producer *mykafka.Producer
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	uid := UserID(c)
	if uid == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var list []models.Order
	if err := h.DB.Where("user_id = ?", uid).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&list).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	uid := UserID(c)
	if uid == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.DB.Where("id = ? AND user_id = ?", id, uid).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.OrderItem
	if err := h.DB.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"order": order, "items": items})
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	uid := UserID(c)
	if uid == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	order, err := h.Tracker.CancelOrder(c.Request().Context(), uid, uint(id))
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, orders.ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	h.publish(c, map[string]any{
		"type":    "order_cancelled",
		"userID":  uid,
		"orderID": order.ID,
	})
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

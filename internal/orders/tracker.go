package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/models"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Tracker applies later payment-lifecycle events to existing orders.
// Events may arrive before materialization finished or more than once;
// both are tolerated.
type Tracker struct {
	DB  *gorm.DB
	Log *slog.Logger
}

func (t *Tracker) HandlePaymentSucceeded(ctx context.Context, paymentIntentID string) error {
	return t.setStatusByIntent(ctx, paymentIntentID, models.OrderStatusProcessing)
}

func (t *Tracker) HandlePaymentFailed(ctx context.Context, paymentIntentID string) error {
	return t.setStatusByIntent(ctx, paymentIntentID, models.OrderStatusCancelled)
}

func (t *Tracker) setStatusByIntent(ctx context.Context, paymentIntentID, status string) error {
	if paymentIntentID == "" {
		t.Log.Warn("payment event without intent id ignored")
		return nil
	}
	// Only pending orders move; a redelivered or late event cannot pull an
	// order out of a later or terminal status.
	res := t.DB.WithContext(ctx).Model(&models.Order{}).
		Where("stripe_payment_intent_id = ? AND status = ?", paymentIntentID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("orders: update status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the completion event is still in flight (the provider will
		// redeliver this one) or the order has already moved on.
		t.Log.Info("payment event without pending order ignored",
			"payment_intent_id", paymentIntentID, "status", status)
	}
	return nil
}

// CancelOrder is the user-initiated cancellation, permitted only while the
// order is still pending.
func (t *Tracker) CancelOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := t.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("orders: load order: %w", err)
	}

	res := t.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":     models.OrderStatusCancelled,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("orders: cancel order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, orderID, order.Status)
	}

	order.Status = models.OrderStatusCancelled
	return &order, nil
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/checkout"
	"github.com/shopcore/storefront/internal/models"
	"github.com/shopcore/storefront/internal/payment"
)

// ErrMissingMetadata means the completion event cannot be correlated to a
// user and address; no order is created and the event needs operator
// attention, since provider retries cannot repair the metadata.
var ErrMissingMetadata = errors.New("session metadata missing required fields")

// Materializer turns a completed checkout session into a persistent order,
// exactly once per session id. Delivery of the completion event is
// at-least-once and unordered, so every step past the order insert must
// tolerate re-execution.
type Materializer struct {
	DB       *gorm.DB
	Provider payment.Provider
	Log      *slog.Logger
}

// HandleSessionCompleted materializes the order for a completed session.
//
// The event's embedded object is not trusted: the full session, line items
// and payment-intent linkage are re-fetched from the provider. The order
// row is keyed by the unique session id; a duplicate insert is the benign
// signature of a redelivered event and ends processing. Inventory
// decrements and the cart clear are best-effort: the order's existence is
// authoritative over that bookkeeping.
func (m *Materializer) HandleSessionCompleted(ctx context.Context, sessionID string) error {
	session, err := m.Provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return err
	}

	userID, err1 := strconv.Atoi(session.Metadata["user_id"])
	shippingID, err2 := strconv.Atoi(session.Metadata["shipping_address_id"])
	if err1 != nil || err2 != nil || userID == 0 || shippingID == 0 {
		m.Log.Error("session completed without required metadata",
			"session_id", session.ID)
		return ErrMissingMetadata
	}
	billingID, err := strconv.Atoi(session.Metadata["billing_address_id"])
	if err != nil || billingID == 0 {
		billingID = shippingID
	}

	order := models.Order{
		UserID:                uint(userID),
		Status:                models.OrderStatusPending,
		Total:                 float64(session.AmountTotal) / 100,
		Currency:              session.Currency,
		ShippingAddressID:     uint(shippingID),
		BillingAddressID:      uint(billingID),
		StripeSessionID:       session.ID,
		StripePaymentIntentID: session.PaymentIntent,
	}
	if err := m.DB.WithContext(ctx).Create(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			m.Log.Info("duplicate completion event ignored", "session_id", session.ID)
			return nil
		}
		return fmt.Errorf("orders: create order: %w", err)
	}
	m.Log.Info("order created", "order_id", order.ID, "session_id", session.ID)

	for _, li := range session.LineItems.Data {
		rawID := li.Price.Metadata["product_id"]
		if rawID == "" || rawID == checkout.ShippingMetadataID {
			continue
		}
		productID, err := strconv.Atoi(rawID)
		if err != nil {
			m.Log.Error("line item with unparseable product id",
				"session_id", session.ID, "product_id", rawID)
			continue
		}
		quantity := li.Quantity
		if quantity == 0 {
			quantity = 1
		}

		item := models.OrderItem{
			OrderID:   order.ID,
			ProductID: uint(productID),
			Quantity:  quantity,
			UnitPrice: float64(li.Price.UnitAmount) / 100,
			LineTotal: float64(li.Price.UnitAmount) / 100 * float64(quantity),
		}
		if err := m.DB.WithContext(ctx).Create(&item).Error; err != nil {
			m.Log.Error("failed to create order item",
				"order_id", order.ID, "product_id", productID, "err", err)
			continue
		}

		if err := m.decrementInventory(ctx, uint(productID), quantity); err != nil {
			// Inventory drift is an operational alert, not a rollback.
			m.Log.Error("failed to decrement inventory",
				"order_id", order.ID, "product_id", productID, "err", err)
		}
	}

	if err := m.DB.WithContext(ctx).
		Where("user_id = ?", order.UserID).
		Delete(&models.CartItem{}).Error; err != nil {
		m.Log.Error("failed to clear cart after checkout",
			"order_id", order.ID, "user_id", order.UserID, "err", err)
	}

	return nil
}

// decrementInventory is conditionally atomic: the row is only updated when
// the result stays non-negative.
func (m *Materializer) decrementInventory(ctx context.Context, productID, quantity uint) error {
	res := m.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND inventory >= ?", productID, quantity).
		UpdateColumn("inventory", gorm.Expr("inventory - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("inventory of product %d would go negative", productID)
	}
	return nil
}

package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/models"
	"github.com/shopcore/storefront/internal/payment"
)

// ShippingMetadataID marks the synthetic shipping line item so order
// materialization can exclude it.
const ShippingMetadataID = "shipping"

const sessionTTL = 30 * time.Minute

type Config struct {
	Currency              string
	SuccessURL            string
	CancelURL             string
	FreeShippingThreshold float64
	ShippingFee           float64
}

// Service turns a verified cart plus a shipping address into a
// provider-hosted payment page. No local Order is created here; that is
// deferred to the completion webhook so abandoned sessions leave no trace.
type Service struct {
	DB       *gorm.DB
	Provider payment.Provider
	Config   Config
}

type LineInput struct {
	ProductID uint    `json:"product_id" validate:"required"`
	Quantity  uint    `json:"quantity" validate:"required,min=1"`
	UnitPrice float64 `json:"unit_price"`
}

type Request struct {
	UserID            uint
	CustomerEmail     string
	Lines             []LineInput
	ShippingAddressID uint
	BillingAddressID  uint
	Metadata          map[string]string
}

type Result struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateSession re-validates every line server-side. Unlike the cart's bulk
// paths, any mismatch here is a hard failure: the shopper is sent back to
// the cart rather than silently charged a corrected amount.
func (s *Service) CreateSession(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	var shipping models.Address
	if err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", req.ShippingAddressID, req.UserID).
		First(&shipping).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("checkout: load address: %w", err)
	}
	billingID := req.BillingAddressID
	if billingID == 0 {
		billingID = shipping.ID
	}

	lineItems := make([]payment.LineItemParams, 0, len(req.Lines)+1)
	var subtotal float64
	for _, line := range req.Lines {
		var p models.Product
		if err := s.DB.WithContext(ctx).First(&p, line.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, line.ProductID)
			}
			return nil, fmt.Errorf("checkout: load product: %w", err)
		}
		if !p.Active {
			return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, p.ID)
		}
		if line.Quantity > p.Inventory {
			return nil, fmt.Errorf("%w: product %d", ErrInsufficientInventory, p.ID)
		}
		if line.UnitPrice != p.Price {
			return nil, fmt.Errorf("%w: product %d", ErrPriceMismatch, p.ID)
		}

		subtotal += p.Price * float64(line.Quantity)
		lineItems = append(lineItems, payment.LineItemParams{
			Name:        p.Name,
			Description: p.Description,
			UnitAmount:  minorUnits(p.Price),
			Quantity:    line.Quantity,
			Metadata:    map[string]string{"product_id": strconv.Itoa(int(p.ID))},
		})
	}

	if shippingCost := s.shippingCost(subtotal); shippingCost > 0 {
		lineItems = append(lineItems, payment.LineItemParams{
			Name:       "Shipping",
			UnitAmount: minorUnits(shippingCost),
			Quantity:   1,
			Metadata:   map[string]string{"product_id": ShippingMetadataID},
		})
	}

	metadata := map[string]string{
		"user_id":             strconv.Itoa(int(req.UserID)),
		"shipping_address_id": strconv.Itoa(int(shipping.ID)),
		"billing_address_id":  strconv.Itoa(int(billingID)),
	}
	for k, v := range req.Metadata {
		if _, reserved := metadata[k]; !reserved {
			metadata[k] = v
		}
	}

	session, err := s.Provider.CreateCheckoutSession(ctx, payment.SessionParams{
		Currency:      s.Config.Currency,
		SuccessURL:    s.Config.SuccessURL,
		CancelURL:     s.Config.CancelURL,
		CustomerEmail: req.CustomerEmail,
		Metadata:      metadata,
		LineItems:     lineItems,
		ExpiresAt:     time.Now().Add(sessionTTL).Unix(),
	})
	if err != nil {
		return nil, err
	}

	return &Result{SessionID: session.ID, URL: session.URL}, nil
}

// SessionSummary returns the session for its owner only.
func (s *Service) SessionSummary(ctx context.Context, userID uint, sessionID string) (*payment.CheckoutSession, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	session, err := s.Provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Metadata["user_id"] != strconv.Itoa(int(userID)) {
		return nil, ErrUnauthenticated
	}
	return session, nil
}

func (s *Service) shippingCost(subtotal float64) float64 {
	if subtotal >= s.Config.FreeShippingThreshold {
		return 0
	}
	return s.Config.ShippingFee
}

func minorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

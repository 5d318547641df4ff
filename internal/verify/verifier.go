package verify

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/models"
)

const (
	WarnPriceChanged    = "price_changed"
	WarnQuantityReduced = "quantity_reduced"
	WarnItemRemoved     = "item_removed"
)

// Warning describes one correction applied to a cart line so the UI can
// surface it to the shopper.
type Warning struct {
	ProductID uint   `json:"product_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// Line is a cart line whose price and quantity have been re-read from the
// product table. Only verified lines may feed a money-moving operation.
type Line struct {
	ProductID      uint    `json:"product_id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Quantity       uint    `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	Inventory      uint    `json:"inventory"`
	ServerVerified bool    `json:"server_verified"`
}

// Lines re-prices and re-clamps cart lines against live product rows.
// Missing or inactive products are dropped, stale prices overwritten,
// oversized quantities clamped (to zero means dropped). The input order
// is preserved.
func Lines(ctx context.Context, db *gorm.DB, items []models.CartItem) ([]Line, []Warning, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}

	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	var products []models.Product
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, nil, fmt.Errorf("verify: load products: %w", err)
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var out []Line
	var warnings []Warning
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok || !p.Active {
			warnings = append(warnings, Warning{
				ProductID: it.ProductID,
				Kind:      WarnItemRemoved,
				Message:   "item is no longer available",
			})
			continue
		}

		line := Line{
			ProductID:      p.ID,
			Name:           p.Name,
			Description:    p.Description,
			Quantity:       it.Quantity,
			UnitPrice:      p.Price,
			Inventory:      p.Inventory,
			ServerVerified: true,
		}

		if it.UnitPrice != p.Price {
			warnings = append(warnings, Warning{
				ProductID: p.ID,
				Kind:      WarnPriceChanged,
				Message:   fmt.Sprintf("price of %s changed", p.Name),
			})
		}

		if line.Quantity > p.Inventory {
			line.Quantity = p.Inventory
			if line.Quantity == 0 {
				warnings = append(warnings, Warning{
					ProductID: p.ID,
					Kind:      WarnItemRemoved,
					Message:   fmt.Sprintf("%s is out of stock", p.Name),
				})
				continue
			}
			warnings = append(warnings, Warning{
				ProductID: p.ID,
				Kind:      WarnQuantityReduced,
				Message:   fmt.Sprintf("only %d of %s left in stock", line.Quantity, p.Name),
			})
		}

		out = append(out, line)
	}
	return out, warnings, nil
}

package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/logging"
	"github.com/shopcore/storefront/internal/models"
	"github.com/shopcore/storefront/internal/verify"
)

var (
	ErrProductUnavailable    = errors.New("product unavailable")
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

// Identity addresses one cart: an authenticated user or an anonymous
// device token. Exactly one of the fields is set.
type Identity struct {
	UserID    uint
	CartToken string
}

func (id Identity) Anonymous() bool { return id.UserID == 0 }

// Service is the cart store. Single-line mutations hard-fail on inventory
// and availability problems; bulk paths (merge, verified reload) downgrade
// lines and report warnings instead.
type Service struct {
	DB *gorm.DB
}

func (s *Service) scope(id Identity) *gorm.DB {
	if id.Anonymous() {
		return s.DB.Where("cart_token = ?", id.CartToken)
	}
	return s.DB.Where("user_id = ?", id.UserID)
}

func (s *Service) Lines(ctx context.Context, id Identity) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := s.scope(id).WithContext(ctx).Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("cart: load lines: %w", err)
	}
	return items, nil
}

// VerifiedLines is the explicit-reload path: every line is re-priced and
// re-clamped against live product rows.
func (s *Service) VerifiedLines(ctx context.Context, id Identity) ([]verify.Line, []verify.Warning, error) {
	items, err := s.Lines(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return verify.Lines(ctx, s.DB, items)
}

func (s *Service) liveProduct(ctx context.Context, productID uint) (*models.Product, error) {
	var p models.Product
	if err := s.DB.WithContext(ctx).First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, fmt.Errorf("cart: load product: %w", err)
	}
	if !p.Active {
		return nil, ErrProductUnavailable
	}
	return &p, nil
}

// AddLine sums with an existing line for the same product. The combined
// quantity must fit the product's current inventory.
func (s *Service) AddLine(ctx context.Context, id Identity, productID, quantity uint) (*models.CartItem, error) {
	if quantity < 1 {
		quantity = 1
	}
	p, err := s.liveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var item models.CartItem
	tx := s.scope(id).WithContext(ctx).Where("product_id = ?", productID).First(&item)
	if tx.Error == nil {
		if item.Quantity+quantity > p.Inventory {
			return nil, fmt.Errorf("%w: product %d", ErrInsufficientInventory, productID)
		}
		item.Quantity += quantity
		item.UnitPrice = p.Price
		if err := s.DB.WithContext(ctx).Save(&item).Error; err != nil {
			return nil, fmt.Errorf("cart: save line: %w", err)
		}
		return &item, nil
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("cart: load line: %w", tx.Error)
	}

	if quantity > p.Inventory {
		return nil, fmt.Errorf("%w: product %d", ErrInsufficientInventory, productID)
	}
	item = models.CartItem{
		UserID:    id.UserID,
		CartToken: id.CartToken,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: p.Price,
	}
	if err := s.DB.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("cart: create line: %w", err)
	}
	return &item, nil
}

// SetQuantity replaces the line's quantity. Zero or below removes the line.
func (s *Service) SetQuantity(ctx context.Context, id Identity, productID uint, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, s.RemoveLine(ctx, id, productID)
	}
	p, err := s.liveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if uint(quantity) > p.Inventory {
		return nil, fmt.Errorf("%w: product %d", ErrInsufficientInventory, productID)
	}

	var item models.CartItem
	tx := s.scope(id).WithContext(ctx).Where("product_id = ?", productID).First(&item)
	if tx.Error != nil {
		if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart: load line: %w", tx.Error)
		}
		item = models.CartItem{
			UserID:    id.UserID,
			CartToken: id.CartToken,
			ProductID: productID,
			Quantity:  uint(quantity),
			UnitPrice: p.Price,
		}
		if err := s.DB.WithContext(ctx).Create(&item).Error; err != nil {
			return nil, fmt.Errorf("cart: create line: %w", err)
		}
		return &item, nil
	}

	item.Quantity = uint(quantity)
	item.UnitPrice = p.Price
	if err := s.DB.WithContext(ctx).Save(&item).Error; err != nil {
		return nil, fmt.Errorf("cart: save line: %w", err)
	}
	return &item, nil
}

// RemoveLine is idempotent: removing an absent line succeeds.
func (s *Service) RemoveLine(ctx context.Context, id Identity, productID uint) error {
	if err := s.scope(id).WithContext(ctx).Where("product_id = ?", productID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("cart: delete line: %w", err)
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, id Identity) error {
	if err := s.scope(id).WithContext(ctx).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	return nil
}

// MergeAnonymousIntoUser migrates a device cart into the signed-in user's
// server cart. Each anonymous line is verified first, then the server line
// is SET to min(anon+server, inventory). The upsert is a last-write-wins
// set rather than an increment, so retrying the write itself cannot
// double-count. The anonymous lines are deleted last.
func (s *Service) MergeAnonymousIntoUser(ctx context.Context, cartToken string, userID uint) ([]verify.Line, []verify.Warning, error) {
	anonID := Identity{CartToken: cartToken}
	userIdent := Identity{UserID: userID}

	anonItems, err := s.Lines(ctx, anonID)
	if err != nil {
		return nil, nil, err
	}
	if len(anonItems) == 0 {
		return s.VerifiedLines(ctx, userIdent)
	}

	verified, warnings, err := verify.Lines(ctx, s.DB, anonItems)
	if err != nil {
		return nil, nil, err
	}

	serverItems, err := s.Lines(ctx, userIdent)
	if err != nil {
		return nil, nil, err
	}
	serverQty := make(map[uint]uint, len(serverItems))
	for _, it := range serverItems {
		serverQty[it.ProductID] = it.Quantity
	}

	for _, line := range verified {
		target := line.Quantity + serverQty[line.ProductID]
		if target > line.Inventory {
			target = line.Inventory
			warnings = append(warnings, verify.Warning{
				ProductID: line.ProductID,
				Kind:      verify.WarnQuantityReduced,
				Message:   fmt.Sprintf("only %d of %s left in stock", target, line.Name),
			})
		}
		if target == 0 {
			continue
		}
		if _, err := s.SetQuantity(ctx, userIdent, line.ProductID, int(target)); err != nil {
			// Inventory may have moved between verification and the write;
			// degrade instead of failing the whole merge.
			if errors.Is(err, ErrInsufficientInventory) || errors.Is(err, ErrProductUnavailable) {
				logging.FromContext(ctx).Warn("cart line degraded during merge",
					"product_id", line.ProductID, "err", err)
				warnings = append(warnings, verify.Warning{
					ProductID: line.ProductID,
					Kind:      verify.WarnQuantityReduced,
					Message:   fmt.Sprintf("could not migrate full quantity of %s", line.Name),
				})
				continue
			}
			return nil, nil, err
		}
	}

	if err := s.Clear(ctx, anonID); err != nil {
		return nil, nil, err
	}

	return s.VerifiedLines(ctx, userIdent)
}

package cart

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/models"
)

func initTestService(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.CartItem{}))
	return &Service{DB: db}
}

func seedProduct(t *testing.T, s *Service, price float64, inventory uint) models.Product {
	p := models.Product{Name: "widget", Description: "d", Price: price, Inventory: inventory, Active: true}
	require.NoError(t, s.DB.Create(&p).Error)
	return p
}

func TestAddLineSumsWithExistingLine(t *testing.T) {
	s := initTestService(t)
	p := seedProduct(t, s, 1000, 10)
	id := Identity{UserID: 1}
	ctx := context.Background()

	item, err := s.AddLine(ctx, id, p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, uint(2), item.Quantity)

	item, err = s.AddLine(ctx, id, p.ID, 3)
	require.NoError(t, err)
	require.Equal(t, uint(5), item.Quantity)
	require.Equal(t, float64(1000), item.UnitPrice)

	items, err := s.Lines(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestAddLineRejectsOverInventory(t *testing.T) {
	s := initTestService(t)
	p := seedProduct(t, s, 1000, 3)
	id := Identity{UserID: 1}
	ctx := context.Background()

	_, err := s.AddLine(ctx, id, p.ID, 2)
	require.NoError(t, err)

	_, err = s.AddLine(ctx, id, p.ID, 2)
	require.ErrorIs(t, err, ErrInsufficientInventory)

	// the failed add must not have touched the line
	items, err := s.Lines(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, uint(2), items[0].Quantity)
}

func TestAddLineUnavailableProduct(t *testing.T) {
	s := initTestService(t)
	inactive := models.Product{Name: "retired", Description: "d", Price: 100, Inventory: 5, Active: false}
	require.NoError(t, s.DB.Create(&inactive).Error)
	ctx := context.Background()

	_, err := s.AddLine(ctx, Identity{UserID: 1}, inactive.ID, 1)
	require.ErrorIs(t, err, ErrProductUnavailable)

	_, err = s.AddLine(ctx, Identity{UserID: 1}, 999, 1)
	require.ErrorIs(t, err, ErrProductUnavailable)
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	s := initTestService(t)
	p := seedProduct(t, s, 1000, 10)
	id := Identity{UserID: 1}
	ctx := context.Background()

	_, err := s.AddLine(ctx, id, p.ID, 2)
	require.NoError(t, err)

	item, err := s.SetQuantity(ctx, id, p.ID, 0)
	require.NoError(t, err)
	require.Nil(t, item)

	items, err := s.Lines(ctx, id)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestSetQuantityReplacesNotSums(t *testing.T) {
	s := initTestService(t)
	p := seedProduct(t, s, 1000, 10)
	id := Identity{UserID: 1}
	ctx := context.Background()

	_, err := s.AddLine(ctx, id, p.ID, 8)
	require.NoError(t, err)

	item, err := s.SetQuantity(ctx, id, p.ID, 3)
	require.NoError(t, err)
	require.Equal(t, uint(3), item.Quantity)

	_, err = s.SetQuantity(ctx, id, p.ID, 11)
	require.ErrorIs(t, err, ErrInsufficientInventory)
}

func TestRemoveLineAndClearAreIdempotent(t *testing.T) {
	s := initTestService(t)
	p := seedProduct(t, s, 1000, 10)
	id := Identity{UserID: 1}
	ctx := context.Background()

	require.NoError(t, s.RemoveLine(ctx, id, p.ID))
	require.NoError(t, s.Clear(ctx, id))

	_, err := s.AddLine(ctx, id, p.ID, 1)
	require.NoError(t, err)
	require.NoError(t, s.RemoveLine(ctx, id, p.ID))
	require.NoError(t, s.RemoveLine(ctx, id, p.ID))
}

func TestIdentitiesAreIsolated(t *testing.T) {
	s := initTestService(t)
	p := seedProduct(t, s, 1000, 10)
	ctx := context.Background()

	_, err := s.AddLine(ctx, Identity{UserID: 1}, p.ID, 2)
	require.NoError(t, err)
	_, err = s.AddLine(ctx, Identity{CartToken: "device-a"}, p.ID, 3)
	require.NoError(t, err)

	userItems, err := s.Lines(ctx, Identity{UserID: 1})
	require.NoError(t, err)
	require.Len(t, userItems, 1)
	require.Equal(t, uint(2), userItems[0].Quantity)

	anonItems, err := s.Lines(ctx, Identity{CartToken: "device-a"})
	require.NoError(t, err)
	require.Len(t, anonItems, 1)
	require.Equal(t, uint(3), anonItems[0].Quantity)
}

func TestMergeCapsAtInventoryAndEmptiesAnonymousCart(t *testing.T) {
	s := initTestService(t)
	p := seedProduct(t, s, 1000, 4)
	ctx := context.Background()
	const token = "device-a"

	// anonymous cart holds 3, user cart holds 3, inventory is 4
	_, err := s.AddLine(ctx, Identity{CartToken: token}, p.ID, 3)
	require.NoError(t, err)
	_, err = s.AddLine(ctx, Identity{UserID: 7}, p.ID, 3)
	require.NoError(t, err)

	lines, warnings, err := s.MergeAnonymousIntoUser(ctx, token, 7)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, uint(4), lines[0].Quantity)
	require.NotEmpty(t, warnings)

	anonItems, err := s.Lines(ctx, Identity{CartToken: token})
	require.NoError(t, err)
	require.Empty(t, anonItems)
}

func TestMergeSumsDisjointProducts(t *testing.T) {
	s := initTestService(t)
	a := seedProduct(t, s, 1000, 10)
	b := models.Product{Name: "other", Description: "d", Price: 500, Inventory: 10, Active: true}
	require.NoError(t, s.DB.Create(&b).Error)
	ctx := context.Background()
	const token = "device-b"

	_, err := s.AddLine(ctx, Identity{CartToken: token}, a.ID, 2)
	require.NoError(t, err)
	_, err = s.AddLine(ctx, Identity{UserID: 7}, b.ID, 1)
	require.NoError(t, err)

	lines, _, err := s.MergeAnonymousIntoUser(ctx, token, 7)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	byProduct := map[uint]uint{}
	for _, l := range lines {
		byProduct[l.ProductID] = l.Quantity
	}
	require.Equal(t, uint(2), byProduct[a.ID])
	require.Equal(t, uint(1), byProduct[b.ID])
}

func TestMergeDropsDeadAnonymousLines(t *testing.T) {
	s := initTestService(t)
	gone := models.Product{Name: "gone", Description: "d", Price: 100, Inventory: 5, Active: false}
	require.NoError(t, s.DB.Create(&gone).Error)
	ctx := context.Background()
	const token = "device-c"

	require.NoError(t, s.DB.Create(&models.CartItem{
		CartToken: token, ProductID: gone.ID, Quantity: 2, UnitPrice: 100,
	}).Error)

	lines, warnings, err := s.MergeAnonymousIntoUser(ctx, token, 7)
	require.NoError(t, err)
	require.Empty(t, lines)
	require.Len(t, warnings, 1)

	anonItems, err := s.Lines(ctx, Identity{CartToken: token})
	require.NoError(t, err)
	require.Empty(t, anonItems)
}

func TestMergeWithEmptyAnonymousCartIsNoOp(t *testing.T) {
	s := initTestService(t)
	p := seedProduct(t, s, 1000, 10)
	ctx := context.Background()

	_, err := s.AddLine(ctx, Identity{UserID: 7}, p.ID, 2)
	require.NoError(t, err)

	lines, warnings, err := s.MergeAnonymousIntoUser(ctx, "never-seen", 7)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, uint(2), lines[0].Quantity)
	require.Empty(t, warnings)
}

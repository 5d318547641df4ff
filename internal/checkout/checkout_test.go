package checkout

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/models"
	"github.com/shopcore/storefront/internal/payment"
)

type fakeProvider struct {
	lastParams payment.SessionParams
	session    *payment.CheckoutSession
	err        error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, params payment.SessionParams) (*payment.CheckoutSession, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	if f.session != nil {
		return f.session, nil
	}
	return &payment.CheckoutSession{ID: "cs_test_1", URL: "https://pay.example/cs_test_1"}, nil
}

func (f *fakeProvider) RetrieveSession(_ context.Context, id string) (*payment.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.session != nil {
		return f.session, nil
	}
	return &payment.CheckoutSession{ID: id}, nil
}

func testConfig() Config {
	return Config{
		Currency:              "usd",
		SuccessURL:            "https://shop.example/success",
		CancelURL:             "https://shop.example/cancel",
		FreeShippingThreshold: 10000,
		ShippingFee:           500,
	}
}

func initTestService(t *testing.T) (*Service, *fakeProvider) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Address{}))
	provider := &fakeProvider{}
	return &Service{DB: db, Provider: provider, Config: testConfig()}, provider
}

func seedAddress(t *testing.T, s *Service, userID uint) models.Address {
	addr := models.Address{UserID: userID, Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}
	require.NoError(t, s.DB.Create(&addr).Error)
	return addr
}

func TestCreateSessionAddsShippingLineBelowThreshold(t *testing.T) {
	s, provider := initTestService(t)
	p := models.Product{Name: "widget", Description: "d", Price: 1000, Inventory: 5, Active: true}
	require.NoError(t, s.DB.Create(&p).Error)
	addr := seedAddress(t, s, 7)

	res, err := s.CreateSession(context.Background(), Request{
		UserID:            7,
		CustomerEmail:     "shopper@example.com",
		Lines:             []LineInput{{ProductID: p.ID, Quantity: 2, UnitPrice: 1000}},
		ShippingAddressID: addr.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", res.SessionID)
	require.NotEmpty(t, res.URL)

	params := provider.lastParams
	require.Len(t, params.LineItems, 2)
	require.Equal(t, int64(100000), params.LineItems[0].UnitAmount)
	require.Equal(t, uint(2), params.LineItems[0].Quantity)
	require.Equal(t, "1", params.LineItems[0].Metadata["product_id"])
	require.Equal(t, ShippingMetadataID, params.LineItems[1].Metadata["product_id"])
	require.Equal(t, int64(50000), params.LineItems[1].UnitAmount)

	require.Equal(t, "7", params.Metadata["user_id"])
	require.Equal(t, "1", params.Metadata["shipping_address_id"])
	require.Equal(t, "1", params.Metadata["billing_address_id"])
	require.Equal(t, "shopper@example.com", params.CustomerEmail)
	require.NotZero(t, params.ExpiresAt)
}

func TestCreateSessionFreeShippingAtThreshold(t *testing.T) {
	s, provider := initTestService(t)
	p := models.Product{Name: "big ticket", Description: "d", Price: 10000, Inventory: 5, Active: true}
	require.NoError(t, s.DB.Create(&p).Error)
	addr := seedAddress(t, s, 7)

	_, err := s.CreateSession(context.Background(), Request{
		UserID:            7,
		Lines:             []LineInput{{ProductID: p.ID, Quantity: 1, UnitPrice: 10000}},
		ShippingAddressID: addr.ID,
	})
	require.NoError(t, err)
	require.Len(t, provider.lastParams.LineItems, 1)
}

func TestCreateSessionHardFailures(t *testing.T) {
	s, _ := initTestService(t)
	active := models.Product{Name: "active", Description: "d", Price: 1000, Inventory: 2, Active: true}
	inactive := models.Product{Name: "inactive", Description: "d", Price: 1000, Inventory: 2, Active: false}
	require.NoError(t, s.DB.Create(&active).Error)
	require.NoError(t, s.DB.Create(&inactive).Error)
	addr := seedAddress(t, s, 7)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, Request{Lines: []LineInput{{ProductID: active.ID, Quantity: 1, UnitPrice: 1000}}, ShippingAddressID: addr.ID})
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.CreateSession(ctx, Request{UserID: 7, ShippingAddressID: addr.ID})
	require.ErrorIs(t, err, ErrEmptyCart)

	_, err = s.CreateSession(ctx, Request{UserID: 7, Lines: []LineInput{{ProductID: active.ID, Quantity: 1, UnitPrice: 1000}}, ShippingAddressID: 999})
	require.ErrorIs(t, err, ErrAddressNotFound)

	// an address owned by someone else is as good as absent
	other := seedAddress(t, s, 8)
	_, err = s.CreateSession(ctx, Request{UserID: 7, Lines: []LineInput{{ProductID: active.ID, Quantity: 1, UnitPrice: 1000}}, ShippingAddressID: other.ID})
	require.ErrorIs(t, err, ErrAddressNotFound)

	_, err = s.CreateSession(ctx, Request{UserID: 7, Lines: []LineInput{{ProductID: inactive.ID, Quantity: 1, UnitPrice: 1000}}, ShippingAddressID: addr.ID})
	require.ErrorIs(t, err, ErrProductUnavailable)

	_, err = s.CreateSession(ctx, Request{UserID: 7, Lines: []LineInput{{ProductID: active.ID, Quantity: 3, UnitPrice: 1000}}, ShippingAddressID: addr.ID})
	require.ErrorIs(t, err, ErrInsufficientInventory)

	_, err = s.CreateSession(ctx, Request{UserID: 7, Lines: []LineInput{{ProductID: active.ID, Quantity: 1, UnitPrice: 999}}, ShippingAddressID: addr.ID})
	require.ErrorIs(t, err, ErrPriceMismatch)
}

func TestCreateSessionClientMetadataCannotShadowReservedKeys(t *testing.T) {
	s, provider := initTestService(t)
	p := models.Product{Name: "widget", Description: "d", Price: 1000, Inventory: 5, Active: true}
	require.NoError(t, s.DB.Create(&p).Error)
	addr := seedAddress(t, s, 7)

	_, err := s.CreateSession(context.Background(), Request{
		UserID:            7,
		Lines:             []LineInput{{ProductID: p.ID, Quantity: 1, UnitPrice: 1000}},
		ShippingAddressID: addr.ID,
		Metadata:          map[string]string{"user_id": "999", "gift_note": "happy birthday"},
	})
	require.NoError(t, err)
	require.Equal(t, "7", provider.lastParams.Metadata["user_id"])
	require.Equal(t, "happy birthday", provider.lastParams.Metadata["gift_note"])
}

func TestSessionSummaryOwnerOnly(t *testing.T) {
	s, provider := initTestService(t)
	provider.session = &payment.CheckoutSession{
		ID:       "cs_test_9",
		Status:   "complete",
		Metadata: map[string]string{"user_id": "7"},
	}

	session, err := s.SessionSummary(context.Background(), 7, "cs_test_9")
	require.NoError(t, err)
	require.Equal(t, "complete", session.Status)

	_, err = s.SessionSummary(context.Background(), 8, "cs_test_9")
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = s.SessionSummary(context.Background(), 0, "cs_test_9")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

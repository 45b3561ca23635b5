package service

import (
	"context"
	"database/sql"
	"encoding/hex"
	"testing"

	"lifecycle-service/internal/models"
	"lifecycle-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrackerStore struct {
	nextID  int64
	byID    map[int64]*models.AbandonedCart
	byToken map[string]*models.AbandonedCart
}

func newFakeTrackerStore() *fakeTrackerStore {
	return &fakeTrackerStore{
		nextID:  1,
		byID:    make(map[int64]*models.AbandonedCart),
		byToken: make(map[string]*models.AbandonedCart),
	}
}

func (f *fakeTrackerStore) add(cart *models.AbandonedCart) *models.AbandonedCart {
	if cart.ID == 0 {
		cart.ID = f.nextID
		f.nextID++
	}
	f.byID[cart.ID] = cart
	f.byToken[cart.RecoveryToken] = cart
	return cart
}

func (f *fakeTrackerStore) CreateAbandonedCart(_ context.Context, cart *models.AbandonedCart) error {
	f.add(cart)
	return nil
}

func (f *fakeTrackerStore) GetAbandonedCartByID(_ context.Context, id int64) (*models.AbandonedCart, error) {
	cart, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cart, nil
}

func (f *fakeTrackerStore) GetAbandonedCartByToken(_ context.Context, token string) (*models.AbandonedCart, error) {
	cart, ok := f.byToken[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cart, nil
}

func (f *fakeTrackerStore) MarkAbandonedCartRecovered(_ context.Context, cartID, orderID int64) error {
	cart, ok := f.byID[cartID]
	if !ok || cart.IsRecovered {
		return nil
	}
	cart.IsRecovered = true
	cart.RecoveredOrderID = sql.NullInt64{Int64: orderID, Valid: true}
	return nil
}

type fakeLiveCartStore struct {
	carts map[int64][]models.CartSnapshotItem
}

func newFakeLiveCartStore() *fakeLiveCartStore {
	return &fakeLiveCartStore{carts: make(map[int64][]models.CartSnapshotItem)}
}

func (f *fakeLiveCartStore) ReplaceLiveCart(_ context.Context, userID int64, items []models.CartSnapshotItem) error {
	f.carts[userID] = items
	return nil
}

func (f *fakeLiveCartStore) GetLiveCart(_ context.Context, userID int64) ([]models.CartSnapshotItem, error) {
	return f.carts[userID], nil
}

func testTracker(st CartStore, live LiveCartStore) *CartTracker {
	return NewCartTracker(st, live, nil, "https://shop.example.com")
}

func TestGenerateRecoveryTokenUniqueAndFixedLength(t *testing.T) {
	const n = 1000

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		token, err := GenerateRecoveryToken()
		require.NoError(t, err)

		assert.Len(t, token, recoveryTokenBytes*2)
		_, err = hex.DecodeString(token)
		assert.NoError(t, err)

		assert.False(t, seen[token], "token collision at iteration %d", i)
		seen[token] = true
	}
}

func TestRecoveryURL(t *testing.T) {
	ct := &CartTracker{baseURL: "https://shop.example.com"}

	url := ct.RecoveryURL("abc123")
	assert.Equal(t, "https://shop.example.com/cart/recover?token=abc123", url)
}

func TestCreateAbandonedCart(t *testing.T) {
	st := newFakeTrackerStore()
	ct := testTracker(st, newFakeLiveCartStore())

	cart, err := ct.CreateAbandonedCart(context.Background(), &CreateAbandonedCartRequest{
		Email: "jane@example.com",
		Items: []models.CartSnapshotItem{
			{ProductID: 1, ProductName: "Whey Isolate", Quantity: 2, UnitPrice: 4999},
			{ProductID: 2, ProductName: "Shaker", Quantity: 1, UnitPrice: 999},
		},
	})
	require.NoError(t, err)

	assert.Len(t, cart.RecoveryToken, recoveryTokenBytes*2)
	assert.Equal(t, int64(2*4999+999), cart.TotalValue)
	assert.False(t, cart.IsRecovered)

	stored, err := st.GetAbandonedCartByToken(context.Background(), cart.RecoveryToken)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, stored.ID)
}

func TestCreateAbandonedCartRejectsEmpty(t *testing.T) {
	ct := testTracker(newFakeTrackerStore(), newFakeLiveCartStore())

	_, err := ct.CreateAbandonedCart(context.Background(), &CreateAbandonedCartRequest{
		Email: "jane@example.com",
	})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestResolveRecoveryUnknownToken(t *testing.T) {
	ct := testTracker(newFakeTrackerStore(), newFakeLiveCartStore())

	_, _, err := ct.ResolveRecovery(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestResolveRecoveryAlreadyRecovered(t *testing.T) {
	st := newFakeTrackerStore()
	st.add(&models.AbandonedCart{
		RecoveryToken:    "tok123",
		CartSnapshot:     []byte(`[{"product_name":"Whey Isolate","quantity":1,"unit_price":4999}]`),
		IsRecovered:      true,
		RecoveredOrderID: sql.NullInt64{Int64: 999, Valid: true},
	})
	ct := testTracker(st, newFakeLiveCartStore())

	cart, items, err := ct.ResolveRecovery(context.Background(), "tok123")
	assert.ErrorIs(t, err, ErrCartAlreadyRecovered)
	assert.Nil(t, items)

	// the cart still comes back so callers can surface the recovering order
	require.NotNil(t, cart)
	assert.Equal(t, int64(999), cart.RecoveredOrderID.Int64)
}

func TestResolveRecoveryReturnsItems(t *testing.T) {
	st := newFakeTrackerStore()
	st.add(&models.AbandonedCart{
		RecoveryToken: "tok123",
		CartSnapshot:  []byte(`[{"product_name":"Whey Isolate","quantity":1,"unit_price":4999}]`),
		TotalValue:    4999,
	})
	ct := testTracker(st, newFakeLiveCartStore())

	cart, items, err := ct.ResolveRecovery(context.Background(), "tok123")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Whey Isolate", items[0].ProductName)
	assert.False(t, cart.IsRecovered)
}

func TestRestoreCartReplacesLiveCart(t *testing.T) {
	st := newFakeTrackerStore()
	st.add(&models.AbandonedCart{
		RecoveryToken: "tok123",
		CartSnapshot:  []byte(`[{"product_name":"Whey Isolate","quantity":1,"unit_price":4999}]`),
	})
	live := newFakeLiveCartStore()
	ct := testTracker(st, live)

	cart, err := ct.RestoreCart(context.Background(), "tok123", 42)
	require.NoError(t, err)

	items, err := ct.LiveCart(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Whey Isolate", items[0].ProductName)

	// restoring is not recovering; only a completed order flips the flag
	assert.False(t, cart.IsRecovered)
}

func TestCompleteRecoveryMarksCart(t *testing.T) {
	st := newFakeTrackerStore()
	cart := st.add(&models.AbandonedCart{
		RecoveryToken: "tok123",
		CartSnapshot:  []byte(`[{"product_name":"Whey Isolate","quantity":1,"unit_price":4999}]`),
	})
	ct := testTracker(st, newFakeLiveCartStore())

	require.NoError(t, ct.CompleteRecovery(context.Background(), cart.ID, 777))
	assert.True(t, cart.IsRecovered)
	assert.Equal(t, int64(777), cart.RecoveredOrderID.Int64)

	_, _, err := ct.ResolveRecovery(context.Background(), "tok123")
	assert.ErrorIs(t, err, ErrCartAlreadyRecovered)
}

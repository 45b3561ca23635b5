package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lifecycle-service/internal/models"
	"lifecycle-service/internal/store"
	"lifecycle-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEmptyCart is returned when an abandonment snapshot has no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCartNotFound is returned for unknown recovery tokens.
	ErrCartNotFound = errors.New("cart not found")
	// ErrCartAlreadyRecovered is returned when a token resolves to a cart
	// that already completed checkout. Distinct from not-found so the
	// storefront can show a different message.
	ErrCartAlreadyRecovered = errors.New("cart already recovered")
)

// recoveryTokenBytes gives 256 bits of entropy, well past the 128-bit floor
// needed to resist enumeration.
const recoveryTokenBytes = 32

// CartStore is the slice of the store the tracker needs.
type CartStore interface {
	CreateAbandonedCart(ctx context.Context, cart *models.AbandonedCart) error
	GetAbandonedCartByID(ctx context.Context, id int64) (*models.AbandonedCart, error)
	GetAbandonedCartByToken(ctx context.Context, token string) (*models.AbandonedCart, error)
	MarkAbandonedCartRecovered(ctx context.Context, cartID, orderID int64) error
}

// LiveCartStore holds the shopper's current cart contents.
type LiveCartStore interface {
	ReplaceLiveCart(ctx context.Context, userID int64, items []models.CartSnapshotItem) error
	GetLiveCart(ctx context.Context, userID int64) ([]models.CartSnapshotItem, error)
}

// CartEventPublisher publishes the cart lifecycle events.
type CartEventPublisher interface {
	PublishCartAbandoned(ctx context.Context, event *models.CartAbandonedEvent) error
	PublishCartRecovered(ctx context.Context, event *models.CartRecoveredEvent) error
}

// CartTracker captures abandoned cart snapshots and resolves recovery tokens
type CartTracker struct {
	store          CartStore
	live           LiveCartStore
	eventPublisher CartEventPublisher
	baseURL        string
	logger         *zap.Logger
}

// NewCartTracker creates a new cart tracker. eventPublisher may be nil
// (events skipped).
func NewCartTracker(
	store CartStore,
	live LiveCartStore,
	eventPublisher CartEventPublisher,
	baseURL string,
) *CartTracker {
	return &CartTracker{
		store:          store,
		live:           live,
		eventPublisher: eventPublisher,
		baseURL:        baseURL,
		logger:         util.GetLogger(),
	}
}

// CreateAbandonedCartRequest represents a cart left behind at checkout
type CreateAbandonedCartRequest struct {
	UserID    int64                     `json:"user_id,omitempty"`
	SessionID string                    `json:"session_id,omitempty"`
	Email     string                    `json:"email,omitempty"`
	Items     []models.CartSnapshotItem `json:"items" binding:"required"`
}

// GenerateRecoveryToken returns a crypto-random token as fixed-length hex.
func GenerateRecoveryToken() (string, error) {
	buf := make([]byte, recoveryTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate recovery token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateAbandonedCart snapshots the cart and persists it with a fresh
// recovery token. Items and total are frozen as of this moment.
func (ct *CartTracker) CreateAbandonedCart(ctx context.Context, req *CreateAbandonedCartRequest) (*models.AbandonedCart, error) {
	ctx, span := util.StartSpan(ctx, "CartTracker.CreateAbandonedCart")
	defer span.End()

	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}

	snapshot, err := json.Marshal(req.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}
	if _, err := models.ParseCartSnapshot(snapshot); err != nil {
		return nil, err
	}

	token, err := GenerateRecoveryToken()
	if err != nil {
		return nil, err
	}

	var totalValue int64
	for _, item := range req.Items {
		totalValue += item.Subtotal()
	}

	cart := &models.AbandonedCart{
		RecoveryToken: token,
		CartSnapshot:  snapshot,
		TotalValue:    totalValue,
	}
	if req.UserID != 0 {
		cart.UserID = sql.NullInt64{Int64: req.UserID, Valid: true}
	}
	if req.SessionID != "" {
		cart.SessionID = sql.NullString{String: req.SessionID, Valid: true}
	}
	if req.Email != "" {
		cart.Email = sql.NullString{String: req.Email, Valid: true}
	}

	if err := ct.store.CreateAbandonedCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to create abandoned cart: %w", err)
	}

	util.AbandonedCartsTotal.Inc()
	ct.logger.Info("Abandoned cart captured",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("total_value", cart.TotalValue))

	if ct.eventPublisher != nil {
		event := &models.CartAbandonedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCartAbandoned,
				Timestamp: time.Now(),
			},
			CartID:     cart.ID,
			UserID:     req.UserID,
			Email:      req.Email,
			TotalValue: cart.TotalValue,
		}
		if err := ct.eventPublisher.PublishCartAbandoned(ctx, event); err != nil {
			ct.logger.Error("Failed to publish CartAbandoned event", zap.Error(err))
		}
	}

	return cart, nil
}

// ResolveRecovery resolves a recovery token to the cart and its parsed items.
// Returns ErrCartNotFound for unknown tokens and ErrCartAlreadyRecovered for
// carts that already completed checkout.
func (ct *CartTracker) ResolveRecovery(ctx context.Context, token string) (*models.AbandonedCart, []models.CartSnapshotItem, error) {
	ctx, span := util.StartSpan(ctx, "CartTracker.ResolveRecovery")
	defer span.End()

	cart, err := ct.store.GetAbandonedCartByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrCartNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up recovery token: %w", err)
	}

	if cart.IsRecovered {
		return cart, nil, ErrCartAlreadyRecovered
	}

	items, err := models.ParseCartSnapshot(cart.CartSnapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("cart %d: %w", cart.ID, err)
	}

	return cart, items, nil
}

// RestoreCart replaces the shopper's live cart with the snapshot's items.
// The cart stays unrecovered until checkout actually completes.
func (ct *CartTracker) RestoreCart(ctx context.Context, token string, userID int64) (*models.AbandonedCart, error) {
	ctx, span := util.StartSpan(ctx, "CartTracker.RestoreCart")
	defer span.End()

	cart, items, err := ct.ResolveRecovery(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := ct.live.ReplaceLiveCart(ctx, userID, items); err != nil {
		return nil, fmt.Errorf("failed to restore cart %d: %w", cart.ID, err)
	}

	util.CartsRestoredTotal.Inc()
	ct.logger.Info("Cart restored from recovery link",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("user_id", userID))

	return cart, nil
}

// CompleteRecovery marks the cart recovered by the given order. Called from
// the order-completion intake, never from the restore path.
func (ct *CartTracker) CompleteRecovery(ctx context.Context, cartID, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "CartTracker.CompleteRecovery")
	defer span.End()

	if err := ct.store.MarkAbandonedCartRecovered(ctx, cartID, orderID); err != nil {
		return fmt.Errorf("failed to mark cart %d recovered: %w", cartID, err)
	}

	util.CartsRecoveredTotal.Inc()
	ct.logger.Info("Abandoned cart recovered",
		zap.Int64("cart_id", cartID),
		zap.Int64("order_id", orderID))

	if ct.eventPublisher != nil {
		event := &models.CartRecoveredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeCartRecovered,
				Timestamp: time.Now(),
			},
			CartID:  cartID,
			OrderID: orderID,
		}
		if err := ct.eventPublisher.PublishCartRecovered(ctx, event); err != nil {
			ct.logger.Error("Failed to publish CartRecovered event", zap.Error(err))
		}
	}

	return nil
}

// GetCart loads a stored abandoned cart by id for the admin surface.
func (ct *CartTracker) GetCart(ctx context.Context, id int64) (*models.AbandonedCart, error) {
	return ct.store.GetAbandonedCartByID(ctx, id)
}

// LiveCart returns the shopper's current live cart contents.
func (ct *CartTracker) LiveCart(ctx context.Context, userID int64) ([]models.CartSnapshotItem, error) {
	return ct.live.GetLiveCart(ctx, userID)
}

// RecoveryURL builds the storefront link embedded in recovery emails.
func (ct *CartTracker) RecoveryURL(token string) string {
	return fmt.Sprintf("%s/cart/recover?token=%s", ct.baseURL, token)
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lifecycle-service/internal/models"
	"lifecycle-service/internal/store"
	"lifecycle-service/internal/util"

	"go.uber.org/zap"
)

// PostPurchaseService maintains per-order nurture tracking records and the
// engagement flags set by checkout, subscription and review flows.
type PostPurchaseService struct {
	store       *store.Store
	cartTracker *CartTracker
	logger      *zap.Logger
}

// NewPostPurchaseService creates a new post-purchase service
func NewPostPurchaseService(store *store.Store, cartTracker *CartTracker) *PostPurchaseService {
	return &PostPurchaseService{
		store:       store,
		cartTracker: cartTracker,
		logger:      util.GetLogger(),
	}
}

// CreateTracking creates the nurture tracking record for a completed order
func (ps *PostPurchaseService) CreateTracking(ctx context.Context, orderID, userID int64, email string, productID int64, purchaseDate time.Time) (*models.PostPurchaseTracking, error) {
	ctx, span := util.StartSpan(ctx, "PostPurchaseService.CreateTracking")
	defer span.End()

	tracking := &models.PostPurchaseTracking{
		OrderID:      orderID,
		Email:        email,
		ProductID:    productID,
		PurchaseDate: purchaseDate,
	}
	if userID != 0 {
		tracking.UserID = sql.NullInt64{Int64: userID, Valid: true}
	}

	if err := ps.store.CreatePostPurchaseTracking(ctx, tracking); err != nil {
		return nil, fmt.Errorf("failed to create post-purchase tracking: %w", err)
	}

	util.PostPurchaseTrackingCreatedTotal.Inc()
	ps.logger.Info("Post-purchase tracking created",
		zap.Int64("order_id", orderID),
		zap.Int64("tracking_id", tracking.ID))

	return tracking, nil
}

// HandleOrderCompleted creates the tracking record for the order and, when
// the order came in through a recovery link, marks the cart recovered.
func (ps *PostPurchaseService) HandleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "PostPurchaseService.HandleOrderCompleted")
	defer span.End()

	purchaseDate := event.CompletedAt
	if purchaseDate.IsZero() {
		purchaseDate = event.Timestamp
	}

	if _, err := ps.CreateTracking(ctx, event.OrderID, event.UserID, event.Email, event.ProductID, purchaseDate); err != nil {
		return err
	}

	if event.RecoveredCartID != 0 {
		if err := ps.cartTracker.CompleteRecovery(ctx, event.RecoveredCartID, event.OrderID); err != nil {
			return err
		}
	}

	return nil
}

// HandleCustomerReordered sets the reorder flag on the original order's record
func (ps *PostPurchaseService) HandleCustomerReordered(ctx context.Context, event *models.CustomerReorderedEvent) error {
	ctx, span := util.StartSpan(ctx, "PostPurchaseService.HandleCustomerReordered")
	defer span.End()

	if err := ps.store.MarkCustomerReordered(ctx, event.OriginalOrderID, event.ReorderOrderID); err != nil {
		return fmt.Errorf("failed to mark customer reordered: %w", err)
	}

	util.EngagementFlagsTotal.WithLabelValues("reordered").Inc()
	ps.logger.Info("Customer reordered",
		zap.Int64("original_order_id", event.OriginalOrderID),
		zap.Int64("reorder_order_id", event.ReorderOrderID))
	return nil
}

// HandleCustomerSubscribed sets the subscription flag
func (ps *PostPurchaseService) HandleCustomerSubscribed(ctx context.Context, event *models.CustomerSubscribedEvent) error {
	ctx, span := util.StartSpan(ctx, "PostPurchaseService.HandleCustomerSubscribed")
	defer span.End()

	if err := ps.store.MarkCustomerSubscribed(ctx, event.OrderID); err != nil {
		return fmt.Errorf("failed to mark customer subscribed: %w", err)
	}

	util.EngagementFlagsTotal.WithLabelValues("subscribed").Inc()
	ps.logger.Info("Customer subscribed", zap.Int64("order_id", event.OrderID))
	return nil
}

// HandleCustomerReviewed sets the review flag
func (ps *PostPurchaseService) HandleCustomerReviewed(ctx context.Context, event *models.CustomerReviewedEvent) error {
	ctx, span := util.StartSpan(ctx, "PostPurchaseService.HandleCustomerReviewed")
	defer span.End()

	if err := ps.store.MarkCustomerReviewed(ctx, event.OrderID); err != nil {
		return fmt.Errorf("failed to mark customer reviewed: %w", err)
	}

	util.EngagementFlagsTotal.WithLabelValues("reviewed").Inc()
	ps.logger.Info("Customer reviewed", zap.Int64("order_id", event.OrderID))
	return nil
}

// GetTracking retrieves the tracking record for an order
func (ps *PostPurchaseService) GetTracking(ctx context.Context, orderID int64) (*models.PostPurchaseTracking, error) {
	return ps.store.GetPostPurchaseTrackingByOrderID(ctx, orderID)
}

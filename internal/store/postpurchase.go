package store

import (
	"context"
	"database/sql"
	"fmt"

	"lifecycle-service/internal/models"
)

// CreatePostPurchaseTracking persists the tracking record for a completed order
func (s *Store) CreatePostPurchaseTracking(ctx context.Context, tracking *models.PostPurchaseTracking) error {
	query := `
		INSERT INTO post_purchase_tracking (order_id, user_id, email, product_id, purchase_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, has_reordered, has_subscribed, has_reviewed`

	return s.db.GetContext(ctx, tracking, query,
		tracking.OrderID, tracking.UserID, tracking.Email, tracking.ProductID, tracking.PurchaseDate)
}

// GetPostPurchaseTrackingByOrderID retrieves the tracking record for an order
func (s *Store) GetPostPurchaseTrackingByOrderID(ctx context.Context, orderID int64) (*models.PostPurchaseTracking, error) {
	var tracking models.PostPurchaseTracking
	err := s.db.GetContext(ctx, &tracking,
		"SELECT * FROM post_purchase_tracking WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("post purchase tracking for order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &tracking, nil
}

// GetOrdersNeedingPostPurchaseEmail selects records due for the day-N email.
// The day gates are independent of each other, anchored on purchase_date
// only, mirroring models.PostPurchaseTracking.NeedsEmail.
func (s *Store) GetOrdersNeedingPostPurchaseEmail(ctx context.Context, day int) ([]models.PostPurchaseTracking, error) {
	column, err := nurtureColumn(day)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT * FROM post_purchase_tracking
		WHERE purchase_date <= NOW() - INTERVAL '%d days'
		  AND %s IS NULL
		ORDER BY purchase_date`, day, column)

	var records []models.PostPurchaseTracking
	err = s.db.SelectContext(ctx, &records, query)
	return records, err
}

// UpdatePostPurchaseEmailSent stamps the sent-at timestamp for one day offset
func (s *Store) UpdatePostPurchaseEmailSent(ctx context.Context, trackingID int64, day int) error {
	column, err := nurtureColumn(day)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE post_purchase_tracking SET %s = NOW() WHERE id = $1", column),
		trackingID)
	return err
}

// MarkCustomerReordered records that the customer placed another order.
// One-way flag: never reset.
func (s *Store) MarkCustomerReordered(ctx context.Context, originalOrderID, reorderOrderID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE post_purchase_tracking
		 SET has_reordered = TRUE, reorder_order_id = $1
		 WHERE order_id = $2`,
		reorderOrderID, originalOrderID)
	return err
}

// MarkCustomerSubscribed records that the customer started a subscription
func (s *Store) MarkCustomerSubscribed(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE post_purchase_tracking SET has_subscribed = TRUE WHERE order_id = $1", orderID)
	return err
}

// MarkCustomerReviewed records that the customer left a product review
func (s *Store) MarkCustomerReviewed(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE post_purchase_tracking SET has_reviewed = TRUE WHERE order_id = $1", orderID)
	return err
}

func nurtureColumn(day int) (string, error) {
	switch day {
	case 7:
		return "day7_sent_at", nil
	case 21:
		return "day21_sent_at", nil
	case 60:
		return "day60_sent_at", nil
	case 90:
		return "day90_sent_at", nil
	}
	return "", fmt.Errorf("invalid nurture day: %d", day)
}

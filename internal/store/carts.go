package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lifecycle-service/internal/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// CreateAbandonedCart persists a new abandoned cart snapshot
func (s *Store) CreateAbandonedCart(ctx context.Context, cart *models.AbandonedCart) error {
	query := `
		INSERT INTO abandoned_carts (user_id, session_id, email, recovery_token, cart_snapshot, total_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_recovered, created_at`

	return s.db.GetContext(ctx, cart, query,
		cart.UserID, cart.SessionID, cart.Email, cart.RecoveryToken, cart.CartSnapshot, cart.TotalValue)
}

// GetAbandonedCartByID retrieves an abandoned cart by ID
func (s *Store) GetAbandonedCartByID(ctx context.Context, id int64) (*models.AbandonedCart, error) {
	var cart models.AbandonedCart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM abandoned_carts WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("abandoned cart %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetAbandonedCartByToken retrieves an abandoned cart by its recovery token.
// Recovered carts are still returned; callers decide how to surface them.
func (s *Store) GetAbandonedCartByToken(ctx context.Context, token string) (*models.AbandonedCart, error) {
	var cart models.AbandonedCart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM abandoned_carts WHERE recovery_token = $1", token)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// MarkAbandonedCartRecovered marks a cart as recovered by a completed order.
// The guard keeps the first recovery's order id and timestamp if called twice.
func (s *Store) MarkAbandonedCartRecovered(ctx context.Context, cartID, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE abandoned_carts
		 SET is_recovered = TRUE, recovered_order_id = $1, recovered_at = NOW()
		 WHERE id = $2 AND is_recovered = FALSE`,
		orderID, cartID)
	return err
}

// UpdateAbandonedCartEmailSent stamps the sent-at timestamp for one sequence.
// Recovery is terminal: if the cart was recovered between selection and this
// stamp, the update is a no-op, mirroring MarkAbandonedCartRecovered's guard.
func (s *Store) UpdateAbandonedCartEmailSent(ctx context.Context, cartID int64, seq int) error {
	var column string
	switch seq {
	case models.CartEmailFirst:
		column = "first_email_sent_at"
	case models.CartEmailSecond:
		column = "second_email_sent_at"
	case models.CartEmailThird:
		column = "third_email_sent_at"
	default:
		return fmt.Errorf("invalid cart email sequence: %d", seq)
	}

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE abandoned_carts SET %s = NOW() WHERE id = $1 AND is_recovered = FALSE", column),
		cartID)
	return err
}

// GetAbandonedCartsForEmail selects the carts due for the given sequence.
// The WHERE clause mirrors models.AbandonedCart.NeedsEmail: chained
// progression gated on elapsed time from created_at, short-circuited by
// recovery. Carts with no captured email are still selected; the sequencer
// skips them at send time, so a later email backfill picks them up.
func (s *Store) GetAbandonedCartsForEmail(ctx context.Context, seq int) ([]models.AbandonedCart, error) {
	var condition string
	switch seq {
	case models.CartEmailFirst:
		condition = `created_at <= NOW() - INTERVAL '1 hour'
			AND first_email_sent_at IS NULL`
	case models.CartEmailSecond:
		condition = `created_at <= NOW() - INTERVAL '24 hours'
			AND first_email_sent_at IS NOT NULL
			AND second_email_sent_at IS NULL`
	case models.CartEmailThird:
		condition = `created_at <= NOW() - INTERVAL '48 hours'
			AND second_email_sent_at IS NOT NULL
			AND third_email_sent_at IS NULL`
	default:
		return nil, fmt.Errorf("invalid cart email sequence: %d", seq)
	}

	query := fmt.Sprintf(`
		SELECT * FROM abandoned_carts
		WHERE is_recovered = FALSE
		  AND %s
		ORDER BY created_at`, condition)

	var carts []models.AbandonedCart
	err := s.db.SelectContext(ctx, &carts, query)
	return carts, err
}

package models

import "time"

// Event types
const (
	EventTypeCartAbandoned      = "CART_ABANDONED"
	EventTypeCartRecovered      = "CART_RECOVERED"
	EventTypeRecoveryEmailSent  = "RECOVERY_EMAIL_SENT"
	EventTypeNurtureEmailSent   = "NURTURE_EMAIL_SENT"
	EventTypeOrderCompleted     = "ORDER_COMPLETED"
	EventTypeCustomerReordered  = "CUSTOMER_REORDERED"
	EventTypeCustomerSubscribed = "CUSTOMER_SUBSCRIBED"
	EventTypeCustomerReviewed   = "CUSTOMER_REVIEWED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CartAbandonedEvent published when a cart snapshot is captured
type CartAbandonedEvent struct {
	BaseEvent
	CartID     int64  `json:"cart_id"`
	UserID     int64  `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	TotalValue int64  `json:"total_value"`
}

// CartRecoveredEvent published when a recovered cart completes checkout
type CartRecoveredEvent struct {
	BaseEvent
	CartID  int64 `json:"cart_id"`
	OrderID int64 `json:"order_id"`
}

// RecoveryEmailSentEvent published after a cart sequence email is stamped
type RecoveryEmailSentEvent struct {
	BaseEvent
	CartID   int64  `json:"cart_id"`
	Sequence int    `json:"sequence"`
	Email    string `json:"email"`
}

// NurtureEmailSentEvent published after a day-N email is stamped
type NurtureEmailSentEvent struct {
	BaseEvent
	TrackingID int64  `json:"tracking_id"`
	OrderID    int64  `json:"order_id"`
	Day        int    `json:"day"`
	Email      string `json:"email"`
}

// OrderCompletedEvent consumed from the checkout service. When the order
// originated from a recovery link it carries the abandoned cart id.
type OrderCompletedEvent struct {
	BaseEvent
	OrderID         int64     `json:"order_id"`
	UserID          int64     `json:"user_id,omitempty"`
	Email           string    `json:"email"`
	ProductID       int64     `json:"product_id"`
	RecoveredCartID int64     `json:"recovered_cart_id,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

// CustomerReorderedEvent consumed when a tracked customer orders again
type CustomerReorderedEvent struct {
	BaseEvent
	OriginalOrderID int64 `json:"original_order_id"`
	ReorderOrderID  int64 `json:"reorder_order_id"`
}

// CustomerSubscribedEvent consumed when a tracked customer starts a subscription
type CustomerSubscribedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
}

// CustomerReviewedEvent consumed when a tracked customer leaves a review
type CustomerReviewedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
}

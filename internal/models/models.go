package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CartSnapshotItem is one line item captured at abandonment time.
// Prices and names are frozen here and never re-joined against the catalog.
type CartSnapshotItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Subtotal returns the line total in minor currency units.
func (i CartSnapshotItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// ParseCartSnapshot decodes and validates a stored cart snapshot.
// Malformed snapshots are rejected here so parse errors never reach the
// send path.
func ParseCartSnapshot(raw []byte) ([]CartSnapshotItem, error) {
	var items []CartSnapshotItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("invalid cart snapshot: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("cart snapshot is empty")
	}
	for i, item := range items {
		if item.ProductName == "" {
			return nil, fmt.Errorf("cart snapshot item %d: missing product name", i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("cart snapshot item %d: invalid quantity %d", i, item.Quantity)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("cart snapshot item %d: negative unit price", i)
		}
	}
	return items, nil
}

// AbandonedCart is a snapshot of an in-progress cart left behind at checkout
type AbandonedCart struct {
	ID                int64          `db:"id" json:"id"`
	UserID            sql.NullInt64  `db:"user_id" json:"user_id,omitempty"`
	SessionID         sql.NullString `db:"session_id" json:"session_id,omitempty"`
	Email             sql.NullString `db:"email" json:"email,omitempty"`
	RecoveryToken     string         `db:"recovery_token" json:"-"`
	CartSnapshot      []byte         `db:"cart_snapshot" json:"cart_snapshot"`
	TotalValue        int64          `db:"total_value" json:"total_value"`
	IsRecovered       bool           `db:"is_recovered" json:"is_recovered"`
	RecoveredOrderID  sql.NullInt64  `db:"recovered_order_id" json:"recovered_order_id,omitempty"`
	RecoveredAt       sql.NullTime   `db:"recovered_at" json:"recovered_at,omitempty"`
	FirstEmailSentAt  sql.NullTime   `db:"first_email_sent_at" json:"first_email_sent_at,omitempty"`
	SecondEmailSentAt sql.NullTime   `db:"second_email_sent_at" json:"second_email_sent_at,omitempty"`
	ThirdEmailSentAt  sql.NullTime   `db:"third_email_sent_at" json:"third_email_sent_at,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// Cart email sequence numbers
const (
	CartEmailFirst  = 1
	CartEmailSecond = 2
	CartEmailThird  = 3
)

// CartEmailSequences lists the sequence numbers in send order.
var CartEmailSequences = []int{CartEmailFirst, CartEmailSecond, CartEmailThird}

// CartEmailDelay returns how long after CreatedAt a sequence becomes due.
func CartEmailDelay(seq int) (time.Duration, bool) {
	switch seq {
	case CartEmailFirst:
		return time.Hour, true
	case CartEmailSecond:
		return 24 * time.Hour, true
	case CartEmailThird:
		return 48 * time.Hour, true
	}
	return 0, false
}

// NeedsEmail reports whether the cart is due for the given sequence at now.
// The progression is chained: each step requires the previous step's
// timestamp, and recovery excludes the cart from every step. The store's
// selection queries mirror this predicate exactly.
func (c *AbandonedCart) NeedsEmail(seq int, now time.Time) bool {
	if c.IsRecovered {
		return false
	}
	delay, ok := CartEmailDelay(seq)
	if !ok {
		return false
	}
	if now.Sub(c.CreatedAt) < delay {
		return false
	}
	switch seq {
	case CartEmailFirst:
		return !c.FirstEmailSentAt.Valid
	case CartEmailSecond:
		return c.FirstEmailSentAt.Valid && !c.SecondEmailSentAt.Valid
	case CartEmailThird:
		return c.SecondEmailSentAt.Valid && !c.ThirdEmailSentAt.Valid
	}
	return false
}

// PostPurchaseTracking is the per-order record driving the nurture sequence
type PostPurchaseTracking struct {
	ID             int64         `db:"id" json:"id"`
	OrderID        int64         `db:"order_id" json:"order_id"`
	UserID         sql.NullInt64 `db:"user_id" json:"user_id,omitempty"`
	Email          string        `db:"email" json:"email"`
	ProductID      int64         `db:"product_id" json:"product_id"`
	PurchaseDate   time.Time     `db:"purchase_date" json:"purchase_date"`
	Day7SentAt     sql.NullTime  `db:"day7_sent_at" json:"day7_sent_at,omitempty"`
	Day21SentAt    sql.NullTime  `db:"day21_sent_at" json:"day21_sent_at,omitempty"`
	Day60SentAt    sql.NullTime  `db:"day60_sent_at" json:"day60_sent_at,omitempty"`
	Day90SentAt    sql.NullTime  `db:"day90_sent_at" json:"day90_sent_at,omitempty"`
	HasReordered   bool          `db:"has_reordered" json:"has_reordered"`
	ReorderOrderID sql.NullInt64 `db:"reorder_order_id" json:"reorder_order_id,omitempty"`
	HasSubscribed  bool          `db:"has_subscribed" json:"has_subscribed"`
	HasReviewed    bool          `db:"has_reviewed" json:"has_reviewed"`
}

// NurtureDays lists the post-purchase day offsets in send order.
var NurtureDays = []int{7, 21, 60, 90}

// ValidNurtureDay reports whether day is a known nurture offset.
func ValidNurtureDay(day int) bool {
	for _, d := range NurtureDays {
		if d == day {
			return true
		}
	}
	return false
}

// DaySentAt returns the sent-at field for the given day offset.
func (t *PostPurchaseTracking) DaySentAt(day int) (sql.NullTime, bool) {
	switch day {
	case 7:
		return t.Day7SentAt, true
	case 21:
		return t.Day21SentAt, true
	case 60:
		return t.Day60SentAt, true
	case 90:
		return t.Day90SentAt, true
	}
	return sql.NullTime{}, false
}

// NeedsEmail reports whether the day-N nurture email is due at now.
// Unlike the cart sequence the day gates are independent: each is anchored
// on PurchaseDate and does not require earlier days to have been sent.
func (t *PostPurchaseTracking) NeedsEmail(day int, now time.Time) bool {
	sentAt, ok := t.DaySentAt(day)
	if !ok || sentAt.Valid {
		return false
	}
	return !now.Before(t.PurchaseDate.AddDate(0, 0, day))
}

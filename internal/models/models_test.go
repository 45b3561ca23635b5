package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCartSnapshot(t *testing.T) {
	raw := []byte(`[
		{"product_id": 1, "product_name": "Whey Isolate", "variant_name": "Vanilla", "quantity": 2, "unit_price": 3499},
		{"product_id": 2, "product_name": "Creatine", "quantity": 1, "unit_price": 1999}
	]`)

	items, err := ParseCartSnapshot(raw)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Whey Isolate", items[0].ProductName)
	assert.Equal(t, int64(6998), items[0].Subtotal())
	assert.Equal(t, int64(1999), items[1].Subtotal())
}

func TestParseCartSnapshotRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"wrong shape", `{"product_name": "x"}`},
		{"empty array", `[]`},
		{"zero quantity", `[{"product_name": "x", "quantity": 0, "unit_price": 100}]`},
		{"negative quantity", `[{"product_name": "x", "quantity": -1, "unit_price": 100}]`},
		{"missing name", `[{"quantity": 1, "unit_price": 100}]`},
		{"negative price", `[{"product_name": "x", "quantity": 1, "unit_price": -5}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCartSnapshot([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func sentAt(ts time.Time) sql.NullTime {
	return sql.NullTime{Time: ts, Valid: true}
}

func TestCartNeedsEmailProgression(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cart := &AbandonedCart{CreatedAt: created}

	// brand new: nothing due
	for _, seq := range CartEmailSequences {
		assert.False(t, cart.NeedsEmail(seq, created.Add(5*time.Minute)), "seq %d", seq)
	}

	// 61 minutes old: sequence 1 only
	at := created.Add(61 * time.Minute)
	assert.True(t, cart.NeedsEmail(1, at))
	assert.False(t, cart.NeedsEmail(2, at))
	assert.False(t, cart.NeedsEmail(3, at))

	// first stamped: nothing due until the 24h mark
	cart.FirstEmailSentAt = sentAt(at)
	assert.False(t, cart.NeedsEmail(1, at))
	assert.False(t, cart.NeedsEmail(2, at))

	at = created.Add(25 * time.Hour)
	assert.False(t, cart.NeedsEmail(1, at))
	assert.True(t, cart.NeedsEmail(2, at))
	assert.False(t, cart.NeedsEmail(3, at))

	// second stamped: sequence 3 only once 48h old
	cart.SecondEmailSentAt = sentAt(at)
	assert.False(t, cart.NeedsEmail(3, at))

	at = created.Add(49 * time.Hour)
	assert.False(t, cart.NeedsEmail(1, at))
	assert.False(t, cart.NeedsEmail(2, at))
	assert.True(t, cart.NeedsEmail(3, at))

	// third stamped: terminal
	cart.ThirdEmailSentAt = sentAt(at)
	for _, seq := range CartEmailSequences {
		assert.False(t, cart.NeedsEmail(seq, created.Add(1000*time.Hour)), "seq %d", seq)
	}
}

func TestCartNeedsEmailNoSkipAhead(t *testing.T) {
	// 49 hours old with nothing sent yet: only sequence 1 qualifies, even
	// though the 24h and 48h thresholds have long passed
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cart := &AbandonedCart{CreatedAt: created}
	at := created.Add(49 * time.Hour)

	assert.True(t, cart.NeedsEmail(1, at))
	assert.False(t, cart.NeedsEmail(2, at))
	assert.False(t, cart.NeedsEmail(3, at))
}

func TestCartRecoveryAbsorbs(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cart := &AbandonedCart{
		CreatedAt:        created,
		IsRecovered:      true,
		RecoveredOrderID: sql.NullInt64{Int64: 999, Valid: true},
	}

	for _, seq := range CartEmailSequences {
		assert.False(t, cart.NeedsEmail(seq, created.Add(49*time.Hour)), "seq %d", seq)
	}
}

func TestCartNeedsEmailInvalidSequence(t *testing.T) {
	cart := &AbandonedCart{CreatedAt: time.Now().Add(-100 * time.Hour)}
	assert.False(t, cart.NeedsEmail(0, time.Now()))
	assert.False(t, cart.NeedsEmail(4, time.Now()))
}

func TestNurtureGatesAreIndependent(t *testing.T) {
	purchased := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	tracking := &PostPurchaseTracking{PurchaseDate: purchased}

	// 22 days out: day 7 and day 21 are both due even though day 7 was
	// never stamped; no chaining between gates
	at := purchased.AddDate(0, 0, 22)
	assert.True(t, tracking.NeedsEmail(7, at))
	assert.True(t, tracking.NeedsEmail(21, at))
	assert.False(t, tracking.NeedsEmail(60, at))
	assert.False(t, tracking.NeedsEmail(90, at))

	// stamping day 7 does not affect day 21
	tracking.Day7SentAt = sentAt(at)
	assert.False(t, tracking.NeedsEmail(7, at))
	assert.True(t, tracking.NeedsEmail(21, at))
}

func TestNurtureDaySevenWindow(t *testing.T) {
	purchased := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	tracking := &PostPurchaseTracking{PurchaseDate: purchased}

	assert.False(t, tracking.NeedsEmail(7, purchased.AddDate(0, 0, 6)))
	assert.True(t, tracking.NeedsEmail(7, purchased.AddDate(0, 0, 7)))

	tracking.Day7SentAt = sentAt(purchased.AddDate(0, 0, 7))
	assert.False(t, tracking.NeedsEmail(7, purchased.AddDate(0, 0, 8)))
	assert.False(t, tracking.NeedsEmail(21, purchased.AddDate(0, 0, 8)))
}

func TestNurtureNeedsEmailInvalidDay(t *testing.T) {
	tracking := &PostPurchaseTracking{PurchaseDate: time.Now().AddDate(-1, 0, 0)}
	assert.False(t, tracking.NeedsEmail(14, time.Now()))
	assert.False(t, tracking.NeedsEmail(0, time.Now()))
}

func TestDaySentAt(t *testing.T) {
	ts := sentAt(time.Now())
	tracking := &PostPurchaseTracking{Day60SentAt: ts}

	got, ok := tracking.DaySentAt(60)
	require.True(t, ok)
	assert.True(t, got.Valid)

	got, ok = tracking.DaySentAt(7)
	require.True(t, ok)
	assert.False(t, got.Valid)

	_, ok = tracking.DaySentAt(30)
	assert.False(t, ok)
}

func TestValidNurtureDay(t *testing.T) {
	for _, d := range NurtureDays {
		assert.True(t, ValidNurtureDay(d))
	}
	assert.False(t, ValidNurtureDay(14))
}

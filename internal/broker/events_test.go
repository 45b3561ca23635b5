package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"lifecycle-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdemStore struct {
	seen map[string]bool
}

func (f *fakeIdemStore) CheckIdempotencyKey(_ context.Context, key string) (bool, error) {
	return f.seen[key], nil
}

func (f *fakeIdemStore) SetIdempotencyKey(_ context.Context, key string, _ interface{}, _ time.Duration) error {
	f.seen[key] = true
	return nil
}

func orderCompletedMessage(t *testing.T, eventID string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(&models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   eventID,
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		OrderID: 4211,
		Email:   "jane@example.com",
	})
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

func TestHandleMessageDedupesRedeliveries(t *testing.T) {
	idem := &fakeIdemStore{seen: make(map[string]bool)}
	handler := NewEventHandler(idem)

	var calls int
	handler.OnOrderCompleted(func(_ context.Context, event *models.OrderCompletedEvent) error {
		calls++
		assert.Equal(t, int64(4211), event.OrderID)
		return nil
	})

	msg := orderCompletedMessage(t, "evt-1")
	require.NoError(t, handler.HandleMessage(context.Background(), msg))
	require.NoError(t, handler.HandleMessage(context.Background(), msg))

	assert.Equal(t, 1, calls, "redelivered event must be applied once")
}

func TestHandleMessageWithoutIdemStoreReapplies(t *testing.T) {
	handler := NewEventHandler(nil)

	var calls int
	handler.OnOrderCompleted(func(_ context.Context, _ *models.OrderCompletedEvent) error {
		calls++
		return nil
	})

	msg := orderCompletedMessage(t, "evt-1")
	require.NoError(t, handler.HandleMessage(context.Background(), msg))
	require.NoError(t, handler.HandleMessage(context.Background(), msg))

	assert.Equal(t, 2, calls)
}

func TestHandleMessageFailedDispatchNotMarkedProcessed(t *testing.T) {
	idem := &fakeIdemStore{seen: make(map[string]bool)}
	handler := NewEventHandler(idem)

	fail := true
	var calls int
	handler.OnOrderCompleted(func(_ context.Context, _ *models.OrderCompletedEvent) error {
		calls++
		if fail {
			return assert.AnError
		}
		return nil
	})

	msg := orderCompletedMessage(t, "evt-1")
	require.Error(t, handler.HandleMessage(context.Background(), msg))

	// the failed attempt is retryable: the id was not recorded
	fail = false
	require.NoError(t, handler.HandleMessage(context.Background(), msg))
	assert.Equal(t, 2, calls)
	assert.True(t, idem.seen["evt-1"])
}

package worker

import (
	"context"
	"log"
	"time"

	"lifecycle-service/internal/broker"
	"lifecycle-service/internal/service"
)

// CartEmailWorker drives the abandoned-cart track on a fixed interval
type CartEmailWorker struct {
	sequencer *service.Sequencer
	interval  time.Duration
}

// NewCartEmailWorker creates a new cart email worker
func NewCartEmailWorker(sequencer *service.Sequencer, interval time.Duration) *CartEmailWorker {
	return &CartEmailWorker{sequencer: sequencer, interval: interval}
}

// Start runs the worker until the context is cancelled. The first tick fires
// after one interval, not immediately, so a crash-looping process does not
// hammer the mail transport.
func (w *CartEmailWorker) Start(ctx context.Context) error {
	log.Printf("Starting cart email worker, interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Cart email worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.sequencer.RunCartTick(ctx); err != nil {
				log.Printf("Cart tick error: %v", err)
			}
		}
	}
}

// NurtureEmailWorker drives the post-purchase track on a fixed interval
type NurtureEmailWorker struct {
	sequencer *service.Sequencer
	interval  time.Duration
}

// NewNurtureEmailWorker creates a new nurture email worker
func NewNurtureEmailWorker(sequencer *service.Sequencer, interval time.Duration) *NurtureEmailWorker {
	return &NurtureEmailWorker{sequencer: sequencer, interval: interval}
}

// Start runs the worker until the context is cancelled
func (w *NurtureEmailWorker) Start(ctx context.Context) error {
	log.Printf("Starting nurture email worker, interval=%s", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Nurture email worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.sequencer.RunNurtureTick(ctx); err != nil {
				log.Printf("Nurture tick error: %v", err)
			}
		}
	}
}

// OrderEventsWorker consumes checkout and engagement events and feeds them
// into the trackers
type OrderEventsWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewOrderEventsWorker creates a new order events worker. Processed event ids
// go through idem so Kafka redeliveries are not applied twice.
func NewOrderEventsWorker(
	consumer *broker.Consumer,
	postPurchase *service.PostPurchaseService,
	idem broker.IdempotencyStore,
) *OrderEventsWorker {
	eventHandler := broker.NewEventHandler(idem)

	eventHandler.OnOrderCompleted(postPurchase.HandleOrderCompleted)
	eventHandler.OnCustomerReordered(postPurchase.HandleCustomerReordered)
	eventHandler.OnCustomerSubscribed(postPurchase.HandleCustomerSubscribed)
	eventHandler.OnCustomerReviewed(postPurchase.HandleCustomerReviewed)

	return &OrderEventsWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *OrderEventsWorker) Start(ctx context.Context) error {
	log.Println("Starting order events worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderEventsWorker) Stop() error {
	log.Println("Stopping order events worker...")
	return w.consumer.Close()
}

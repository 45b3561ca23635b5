package service

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"lifecycle-service/internal/mailer"
	"lifecycle-service/internal/models"
	"lifecycle-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartEmailStore is the slice of the store the sequencer needs for the
// abandoned-cart track.
type CartEmailStore interface {
	GetAbandonedCartsForEmail(ctx context.Context, seq int) ([]models.AbandonedCart, error)
	UpdateAbandonedCartEmailSent(ctx context.Context, cartID int64, seq int) error
}

// NurtureEmailStore is the slice of the store the sequencer needs for the
// post-purchase track.
type NurtureEmailStore interface {
	GetOrdersNeedingPostPurchaseEmail(ctx context.Context, day int) ([]models.PostPurchaseTracking, error)
	UpdatePostPurchaseEmailSent(ctx context.Context, trackingID int64, day int) error
}

// TickLocker guards a track against two replicas ticking at once.
type TickLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// SentEventPublisher publishes the analytics events emitted after a stamp.
type SentEventPublisher interface {
	PublishRecoveryEmailSent(ctx context.Context, event *models.RecoveryEmailSentEvent) error
	PublishNurtureEmailSent(ctx context.Context, event *models.NurtureEmailSentEvent) error
}

// SequencerConfig carries the rendering inputs for outbound emails.
type SequencerConfig struct {
	BaseURL            string
	DiscountCodeSecond string
	DiscountPctSecond  int
	DiscountCodeThird  string
	DiscountPctThird   int
}

const (
	cartTickLock    = "sequencer:cart"
	nurtureTickLock = "sequencer:nurture"
	tickLockTTL     = 5 * time.Minute
)

// TickResult aggregates per-tick counts. Ephemeral observability only; every
// scheduling decision is re-derived from the store on the next tick.
type TickResult struct {
	Sent        int
	Failed      int
	Skipped     int
	Quarantined int
}

func (r *TickResult) add(other TickResult) {
	r.Sent += other.Sent
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	r.Quarantined += other.Quarantined
}

// Sequencer runs the two lifecycle email tracks. Each tick re-reads
// eligibility from stored timestamps, sends, and stamps on success. A send
// failure leaves the row untouched so the next tick retries it. Delivery is
// at-least-once: a crash between send and stamp can duplicate one email.
type Sequencer struct {
	carts     CartEmailStore
	nurture   NurtureEmailStore
	mail      mailer.Mailer
	publisher SentEventPublisher
	locker    TickLocker
	cfg       SequencerConfig
	logger    *zap.Logger

	cartTickRunning    atomic.Bool
	nurtureTickRunning atomic.Bool
}

// NewSequencer creates a new sequencer. publisher and locker may be nil
// (events skipped, single-replica mode).
func NewSequencer(
	carts CartEmailStore,
	nurture NurtureEmailStore,
	mail mailer.Mailer,
	publisher SentEventPublisher,
	locker TickLocker,
	cfg SequencerConfig,
) *Sequencer {
	return &Sequencer{
		carts:     carts,
		nurture:   nurture,
		mail:      mail,
		publisher: publisher,
		locker:    locker,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// RunCartTick processes the three cart sequences in order. Overlapping
// invocations are skipped, not queued.
func (sq *Sequencer) RunCartTick(ctx context.Context) (TickResult, error) {
	if !sq.cartTickRunning.CompareAndSwap(false, true) {
		util.SequencerTicksSkippedTotal.WithLabelValues("cart").Inc()
		sq.logger.Warn("Cart tick already in progress, skipping")
		return TickResult{}, nil
	}
	defer sq.cartTickRunning.Store(false)

	release, acquired, err := sq.acquireTickLock(ctx, "cart", cartTickLock)
	if err != nil {
		return TickResult{}, err
	}
	if !acquired {
		return TickResult{}, nil
	}
	defer release()

	util.SequencerTicksTotal.WithLabelValues("cart").Inc()
	start := time.Now()
	defer func() {
		util.SequencerTickDuration.WithLabelValues("cart").Observe(time.Since(start).Seconds())
	}()

	var total TickResult
	for _, seq := range models.CartEmailSequences {
		res, err := sq.ProcessCartSequence(ctx, seq)
		total.add(res)
		if err != nil {
			// store unavailability aborts the remaining sequences; per-record
			// progress already made this tick is durable
			return total, err
		}
	}

	sq.logger.Info("Cart tick finished",
		zap.Int("sent", total.Sent),
		zap.Int("failed", total.Failed),
		zap.Int("skipped", total.Skipped),
		zap.Int("quarantined", total.Quarantined))
	return total, nil
}

// RunNurtureTick processes the four post-purchase day offsets in order.
func (sq *Sequencer) RunNurtureTick(ctx context.Context) (TickResult, error) {
	if !sq.nurtureTickRunning.CompareAndSwap(false, true) {
		util.SequencerTicksSkippedTotal.WithLabelValues("nurture").Inc()
		sq.logger.Warn("Nurture tick already in progress, skipping")
		return TickResult{}, nil
	}
	defer sq.nurtureTickRunning.Store(false)

	release, acquired, err := sq.acquireTickLock(ctx, "nurture", nurtureTickLock)
	if err != nil {
		return TickResult{}, err
	}
	if !acquired {
		return TickResult{}, nil
	}
	defer release()

	util.SequencerTicksTotal.WithLabelValues("nurture").Inc()
	start := time.Now()
	defer func() {
		util.SequencerTickDuration.WithLabelValues("nurture").Observe(time.Since(start).Seconds())
	}()

	var total TickResult
	for _, day := range models.NurtureDays {
		res, err := sq.ProcessNurtureDay(ctx, day)
		total.add(res)
		if err != nil {
			return total, err
		}
	}

	sq.logger.Info("Nurture tick finished",
		zap.Int("sent", total.Sent),
		zap.Int("failed", total.Failed))
	return total, nil
}

// ProcessCartSequence runs one fetch/render/send/stamp pass for a single
// sequence number. Also the entry point for the admin trigger surface, which
// stays idempotent because it reuses the same selection query.
func (sq *Sequencer) ProcessCartSequence(ctx context.Context, seq int) (TickResult, error) {
	ctx, span := util.StartSpan(ctx, "Sequencer.ProcessCartSequence")
	defer span.End()

	carts, err := sq.carts.GetAbandonedCartsForEmail(ctx, seq)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to select carts for email %d: %w", seq, err)
	}

	var res TickResult
	step := strconv.Itoa(seq)
	for i := range carts {
		cart := &carts[i]

		// guest cart with no address captured yet: leave it unstamped so a
		// later email backfill still triggers the sequence
		if !cart.Email.Valid {
			util.EmailsSkippedNoRecipientTotal.Inc()
			res.Skipped++
			sq.logger.Debug("No email captured for cart, skipping send",
				zap.Int64("cart_id", cart.ID),
				zap.Int("sequence", seq))
			continue
		}

		items, err := models.ParseCartSnapshot(cart.CartSnapshot)
		if err != nil {
			util.SnapshotsQuarantinedTotal.Inc()
			res.Quarantined++
			sq.logger.Error("Quarantined malformed cart snapshot",
				zap.Int64("cart_id", cart.ID),
				zap.Error(err))
			continue
		}

		code, pct := sq.discountFor(seq)
		subject, body, err := mailer.RenderCartEmail(seq, mailer.CartEmailData{
			Items:           items,
			TotalValue:      cart.TotalValue,
			RecoveryURL:     fmt.Sprintf("%s/cart/recover?token=%s", sq.cfg.BaseURL, cart.RecoveryToken),
			DiscountCode:    code,
			DiscountPercent: pct,
		})
		if err != nil {
			util.LifecycleEmailsFailedTotal.WithLabelValues("cart", step).Inc()
			res.Failed++
			sq.logger.Error("Failed to render cart email",
				zap.Int64("cart_id", cart.ID),
				zap.Int("sequence", seq),
				zap.Error(err))
			continue
		}

		if err := sq.mail.Send(ctx, cart.Email.String, subject, body); err != nil {
			util.LifecycleEmailsFailedTotal.WithLabelValues("cart", step).Inc()
			res.Failed++
			sq.logger.Warn("Cart email send failed, will retry next tick",
				zap.Int64("cart_id", cart.ID),
				zap.Int("sequence", seq),
				zap.Error(err))
			continue
		}

		if err := sq.carts.UpdateAbandonedCartEmailSent(ctx, cart.ID, seq); err != nil {
			// sent but not stamped: the next tick may duplicate this email
			util.LifecycleEmailsFailedTotal.WithLabelValues("cart", step).Inc()
			res.Failed++
			sq.logger.Error("Failed to stamp cart email sent",
				zap.Int64("cart_id", cart.ID),
				zap.Int("sequence", seq),
				zap.Error(err))
			continue
		}

		util.LifecycleEmailsSentTotal.WithLabelValues("cart", step).Inc()
		res.Sent++

		if sq.publisher != nil {
			event := &models.RecoveryEmailSentEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypeRecoveryEmailSent,
					Timestamp: time.Now(),
				},
				CartID:   cart.ID,
				Sequence: seq,
				Email:    cart.Email.String,
			}
			if err := sq.publisher.PublishRecoveryEmailSent(ctx, event); err != nil {
				sq.logger.Error("Failed to publish RecoveryEmailSent event", zap.Error(err))
			}
		}
	}

	return res, nil
}

// ProcessNurtureDay runs one fetch/render/send/stamp pass for a single day
// offset. Also the admin trigger entry point.
func (sq *Sequencer) ProcessNurtureDay(ctx context.Context, day int) (TickResult, error) {
	ctx, span := util.StartSpan(ctx, "Sequencer.ProcessNurtureDay")
	defer span.End()

	records, err := sq.nurture.GetOrdersNeedingPostPurchaseEmail(ctx, day)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to select orders for day %d email: %w", day, err)
	}

	var res TickResult
	step := strconv.Itoa(day)
	for i := range records {
		record := &records[i]

		subject, body, err := mailer.RenderNurtureEmail(day, mailer.NurtureEmailData{
			OrderID: record.OrderID,
			Day:     day,
			ShopURL: sq.cfg.BaseURL,
		})
		if err != nil {
			util.LifecycleEmailsFailedTotal.WithLabelValues("nurture", step).Inc()
			res.Failed++
			sq.logger.Error("Failed to render nurture email",
				zap.Int64("order_id", record.OrderID),
				zap.Int("day", day),
				zap.Error(err))
			continue
		}

		if err := sq.mail.Send(ctx, record.Email, subject, body); err != nil {
			util.LifecycleEmailsFailedTotal.WithLabelValues("nurture", step).Inc()
			res.Failed++
			sq.logger.Warn("Nurture email send failed, will retry next tick",
				zap.Int64("order_id", record.OrderID),
				zap.Int("day", day),
				zap.Error(err))
			continue
		}

		if err := sq.nurture.UpdatePostPurchaseEmailSent(ctx, record.ID, day); err != nil {
			util.LifecycleEmailsFailedTotal.WithLabelValues("nurture", step).Inc()
			res.Failed++
			sq.logger.Error("Failed to stamp nurture email sent",
				zap.Int64("order_id", record.OrderID),
				zap.Int("day", day),
				zap.Error(err))
			continue
		}

		util.LifecycleEmailsSentTotal.WithLabelValues("nurture", step).Inc()
		res.Sent++

		if sq.publisher != nil {
			event := &models.NurtureEmailSentEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypeNurtureEmailSent,
					Timestamp: time.Now(),
				},
				TrackingID: record.ID,
				OrderID:    record.OrderID,
				Day:        day,
				Email:      record.Email,
			}
			if err := sq.publisher.PublishNurtureEmailSent(ctx, event); err != nil {
				sq.logger.Error("Failed to publish NurtureEmailSent event", zap.Error(err))
			}
		}
	}

	return res, nil
}

func (sq *Sequencer) acquireTickLock(ctx context.Context, track, key string) (func(), bool, error) {
	if sq.locker == nil {
		return func() {}, true, nil
	}

	acquired, err := sq.locker.AcquireLock(ctx, key, tickLockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire %s tick lock: %w", track, err)
	}
	if !acquired {
		util.SequencerTicksSkippedTotal.WithLabelValues(track).Inc()
		sq.logger.Warn("Tick lock held elsewhere, skipping", zap.String("track", track))
		return nil, false, nil
	}

	return func() {
		if err := sq.locker.ReleaseLock(ctx, key); err != nil {
			sq.logger.Error("Failed to release tick lock",
				zap.String("track", track),
				zap.Error(err))
		}
	}, true, nil
}

func (sq *Sequencer) discountFor(seq int) (string, int) {
	switch seq {
	case models.CartEmailSecond:
		return sq.cfg.DiscountCodeSecond, sq.cfg.DiscountPctSecond
	case models.CartEmailThird:
		return sq.cfg.DiscountCodeThird, sq.cfg.DiscountPctThird
	}
	return "", 0
}

package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AbandonedCartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "abandoned_carts_total",
		Help: "Total number of abandoned cart snapshots captured",
	})

	CartsRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_recovered_total",
		Help: "Total number of abandoned carts recovered through a completed order",
	})

	CartsRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_restored_total",
		Help: "Total number of carts restored from a recovery link",
	})

	LifecycleEmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_emails_sent_total",
		Help: "Total number of lifecycle emails sent",
	}, []string{"track", "step"})

	LifecycleEmailsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_emails_failed_total",
		Help: "Total number of lifecycle email send failures",
	}, []string{"track", "step"})

	EmailsSkippedNoRecipientTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifecycle_emails_skipped_no_recipient_total",
		Help: "Total number of due cart emails skipped because no address was captured",
	})

	SnapshotsQuarantinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_snapshots_quarantined_total",
		Help: "Total number of malformed cart snapshots skipped by the sequencer",
	})

	SequencerTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequencer_ticks_total",
		Help: "Total number of sequencer ticks",
	}, []string{"track"})

	SequencerTicksSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequencer_ticks_skipped_total",
		Help: "Total number of ticks skipped because the previous one was still running",
	}, []string{"track"})

	SequencerTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sequencer_tick_duration_seconds",
		Help:    "Duration of sequencer ticks",
		Buckets: prometheus.DefBuckets,
	}, []string{"track"})

	PostPurchaseTrackingCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "post_purchase_tracking_created_total",
		Help: "Total number of post-purchase tracking records created",
	})

	EngagementFlagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_flags_total",
		Help: "Total number of engagement flags set",
	}, []string{"flag"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

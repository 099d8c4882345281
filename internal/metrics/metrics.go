package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotaChecks counts CanPerformAction decisions. result: allowed/denied/error
	QuotaChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_quota_check_total",
			Help: "Total number of action permission checks",
		},
		[]string{"action", "result"},
	)

	// CreditConsumes counts credit consumption attempts. result: success/rejected
	CreditConsumes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_credit_consume_total",
			Help: "Total number of credit consumption attempts",
		},
		[]string{"result"},
	)

	// BalanceReadFailures counts store read errors swallowed or surfaced by the read policy.
	BalanceReadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_balance_read_failure_total",
			Help: "Store read failures on balance and usage reads",
		},
		[]string{"policy"},
	)

	CreditGrants = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_credit_grant_total",
			Help: "Total number of monthly credit grants per plan",
		},
		[]string{"plan", "result"},
	)

	CreditsGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_credits_granted_total",
			Help: "Total credits added by the monthly grant",
		},
		[]string{"plan"},
	)

	BillingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_billing_operation_total",
			Help: "Subscription reconciliation operations",
		},
		[]string{"operation", "result"},
	)

	BillingOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_billing_operation_duration_seconds",
			Help:    "Duration of subscription reconciliation operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StripeWebhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_stripe_webhook_total",
			Help: "Stripe webhook events received",
		},
		[]string{"type"},
	)

	GrantLocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_grant_lock_total",
			Help: "Monthly grant lock acquisition attempts",
		},
		[]string{"result"},
	)
)

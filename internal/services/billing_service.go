package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/plans"
)

// Subscription statuses as reported by the payment processor.
const (
	StatusActive    = "active"
	StatusTrialing  = "trialing"
	StatusPastDue   = "past_due"
	StatusUnpaid    = "unpaid"
	StatusCanceled  = "canceled"
	StatusExpired   = "incomplete_expired"
	InvoicePaid     = "paid"
	NoOpenInvoice   = "no_open_invoice"
	customerPageMax = 10
)

var ErrCustomerNotFound = errors.New("payment customer not found")

// Customer is the processor customer fields reconciliation needs.
type Customer struct {
	ID                   string
	Email                string
	Metadata             map[string]string
	DefaultPaymentMethod string
}

// Subscription is the processor subscription fields mirrored onto profiles.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	PriceID           string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

type Invoice struct {
	ID     string
	Status string
}

// PaymentProcessor is the subset of the processor API reconciliation calls.
type PaymentProcessor interface {
	// GetCustomer returns ErrCustomerNotFound for missing or deleted customers.
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	// ListCustomersByEmail returns at most limit customers from the first page.
	ListCustomersByEmail(ctx context.Context, email string, limit int) ([]Customer, error)
	// ListSubscriptions returns subscriptions in every status.
	ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	ScheduleCancel(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelNow(ctx context.Context, subscriptionID string) (*Subscription, error)
	// FirstOpenInvoice returns nil when the customer has no open invoice.
	FirstOpenInvoice(ctx context.Context, customerID string) (*Invoice, error)
	// PayInvoice pays with paymentMethod, or the processor default when empty.
	PayInvoice(ctx context.Context, invoiceID, paymentMethod string) (*Invoice, error)
}

// SubscriptionEvent is a verified processor webhook reduced to what the mirror needs.
type SubscriptionEvent struct {
	Type         string
	CustomerID   string
	Subscription *Subscription
}

// Webhook event types the mirror reacts to.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoiceFailed       = "invoice.payment_failed"
)

type RetryResult struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

type BillingService struct {
	profiles     ProfileRepo
	processor    PaymentProcessor
	events       EventPublisher
	planForPrice func(priceID string) string
}

func NewBillingService(profiles ProfileRepo, processor PaymentProcessor, events EventPublisher, planForPrice func(string) string) *BillingService {
	if planForPrice == nil {
		planForPrice = func(string) string { return "" }
	}
	return &BillingService{
		profiles:     profiles,
		processor:    processor,
		events:       publisherOrNop(events),
		planForPrice: planForPrice,
	}
}

// CancelAtPeriodEnd schedules the first active subscription to end with its
// period and mirrors the returned state. No customer or no active
// subscription is a successful no-op.
func (s *BillingService) CancelAtPeriodEnd(ctx context.Context, userID string) (err error) {
	defer s.observe("cancel_at_period_end", time.Now(), &err)

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	cust, err := s.resolveCustomer(ctx, profile)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			slog.Info("cancel requested without payment customer", "user_id", userID)
			return nil
		}
		return err
	}

	subs, err := s.processor.ListSubscriptions(ctx, cust.ID)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	var active *Subscription
	for i := range subs {
		if subs[i].Status == StatusActive {
			active = &subs[i]
			break
		}
	}
	if active == nil {
		slog.Info("cancel requested without active subscription", "user_id", userID, "customer_id", cust.ID)
		return nil
	}

	updated, err := s.processor.ScheduleCancel(ctx, active.ID)
	if err != nil {
		return fmt.Errorf("failed to schedule cancellation: %w", err)
	}

	state := SubscriptionState{Status: updated.Status, PeriodEnd: periodEnd(updated.CurrentPeriodEnd)}
	if err := s.profiles.UpdateSubscription(ctx, userID, state); err != nil {
		slog.Error("profile write failed after cancellation was scheduled",
			"user_id", userID, "subscription_id", updated.ID, "operation", "cancel_at_period_end", "error", err)
		return fmt.Errorf("failed to update profile: %w", err)
	}

	s.publish(ctx, "subscription.cancel_scheduled", map[string]any{
		"user_id":            userID,
		"subscription_id":    updated.ID,
		"status":             updated.Status,
		"current_period_end": state.PeriodEnd,
	})
	return nil
}

// DowngradeToFree cancels every live subscription immediately, then sets the
// profile to the free plan whatever the processor calls returned.
func (s *BillingService) DowngradeToFree(ctx context.Context, userID string) (err error) {
	defer s.observe("downgrade_to_free", time.Now(), &err)

	canceled := 0
	profile, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		canceled = s.cancelAll(ctx, profile)
	case errors.Is(err, ErrProfileNotFound):
		return err
	default:
		slog.Error("profile read failed before downgrade", "user_id", userID, "operation", "downgrade_to_free", "error", err)
	}

	state := SubscriptionState{Plan: string(plans.Free), Status: StatusCanceled, PeriodEnd: nil}
	if err := s.profiles.UpdateSubscription(ctx, userID, state); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	s.publish(ctx, "subscription.downgraded", map[string]any{
		"user_id":  userID,
		"canceled": canceled,
	})
	return nil
}

func (s *BillingService) cancelAll(ctx context.Context, profile *models.Profile) int {
	cust, err := s.resolveCustomer(ctx, profile)
	if err != nil {
		if !errors.Is(err, ErrCustomerNotFound) {
			slog.Error("customer lookup failed during downgrade", "user_id", profile.ID, "operation", "downgrade_to_free", "error", err)
		}
		return 0
	}

	subs, err := s.processor.ListSubscriptions(ctx, cust.ID)
	if err != nil {
		slog.Error("subscription listing failed during downgrade", "user_id", profile.ID, "customer_id", cust.ID, "operation", "downgrade_to_free", "error", err)
		return 0
	}

	canceled := 0
	for _, sub := range subs {
		if !cancelable(sub.Status) {
			continue
		}
		if _, err := s.processor.CancelNow(ctx, sub.ID); err != nil {
			slog.Error("subscription cancel failed during downgrade",
				"user_id", profile.ID, "subscription_id", sub.ID, "operation", "downgrade_to_free", "error", err)
			continue
		}
		canceled++
	}
	return canceled
}

// RetryPayment pays the first open invoice, preferring the customer's default
// payment method.
func (s *BillingService) RetryPayment(ctx context.Context, userID string) (result *RetryResult, err error) {
	defer s.observe("retry_payment", time.Now(), &err)

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	cust, err := s.resolveCustomer(ctx, profile)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return &RetryResult{OK: false, Status: NoOpenInvoice}, nil
		}
		return nil, err
	}

	inv, err := s.processor.FirstOpenInvoice(ctx, cust.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	if inv == nil {
		return &RetryResult{OK: false, Status: NoOpenInvoice}, nil
	}

	paid, err := s.processor.PayInvoice(ctx, inv.ID, cust.DefaultPaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to pay invoice: %w", err)
	}

	s.publish(ctx, "invoice.payment_retried", map[string]any{
		"user_id":    userID,
		"invoice_id": paid.ID,
		"status":     paid.Status,
	})
	return &RetryResult{OK: paid.Status == InvoicePaid, Status: paid.Status}, nil
}

// HandleSubscriptionEvent mirrors an asynchronous processor event onto the
// profile owning the customer. Events for unknown customers are ignored.
func (s *BillingService) HandleSubscriptionEvent(ctx context.Context, event *SubscriptionEvent) error {
	if event.CustomerID == "" {
		return nil
	}
	profile, err := s.profiles.GetProfileByStripeCustomer(ctx, event.CustomerID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			slog.Info("webhook for unknown customer ignored", "customer_id", event.CustomerID, "event_type", event.Type)
			return nil
		}
		return err
	}

	var state SubscriptionState
	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		if event.Subscription == nil {
			return nil
		}
		if endsAccess(event.Subscription.Status) {
			state = SubscriptionState{Plan: string(plans.Free), Status: event.Subscription.Status}
			break
		}
		state = SubscriptionState{
			Plan:      s.planForPrice(event.Subscription.PriceID),
			Status:    event.Subscription.Status,
			PeriodEnd: periodEnd(event.Subscription.CurrentPeriodEnd),
		}
	case EventSubscriptionDeleted:
		state = SubscriptionState{Plan: string(plans.Free), Status: StatusCanceled}
	case EventInvoiceFailed:
		state = SubscriptionState{Status: StatusPastDue, PeriodEnd: profile.SubscriptionCurrentPeriodEnd}
	default:
		return nil
	}

	if err := s.profiles.UpdateSubscription(ctx, profile.ID, state); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	slog.Info("subscription mirrored from webhook", "user_id", profile.ID, "event_type", event.Type, "status", state.Status)
	return nil
}

// endsAccess reports statuses after which the subscription grants no plan.
func endsAccess(status string) bool {
	return status == StatusCanceled || status == StatusExpired
}

// resolveCustomer prefers the stored customer id. Profiles without one fall back
// to the first page of an email search, and a match is stored on the profile.
func (s *BillingService) resolveCustomer(ctx context.Context, profile *models.Profile) (*Customer, error) {
	if profile.StripeCustomerID != nil && *profile.StripeCustomerID != "" {
		return s.processor.GetCustomer(ctx, *profile.StripeCustomerID)
	}
	if profile.Email == "" {
		return nil, ErrCustomerNotFound
	}

	candidates, err := s.processor.ListCustomersByEmail(ctx, profile.Email, customerPageMax)
	if err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	cust := matchCustomer(candidates, profile.ID, profile.Email)
	if cust == nil {
		return nil, ErrCustomerNotFound
	}

	if err := s.profiles.SetStripeCustomer(ctx, profile.ID, cust.ID); err != nil {
		slog.Warn("failed to store payment customer id", "user_id", profile.ID, "customer_id", cust.ID, "error", err)
	}
	return cust, nil
}

// matchCustomer picks the customer tagged with the user id, else the first
// exact email match.
func matchCustomer(candidates []Customer, userID, email string) *Customer {
	if len(candidates) > customerPageMax {
		candidates = candidates[:customerPageMax]
	}
	for i := range candidates {
		if candidates[i].Metadata["userId"] == userID {
			return &candidates[i]
		}
	}
	for i := range candidates {
		if candidates[i].Email == email {
			return &candidates[i]
		}
	}
	return nil
}

func cancelable(status string) bool {
	switch status {
	case StatusActive, StatusTrialing, StatusPastDue, StatusUnpaid:
		return true
	}
	return false
}

func periodEnd(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func (s *BillingService) publish(ctx context.Context, key string, payload map[string]any) {
	if err := s.events.Publish(ctx, key, payload); err != nil {
		slog.Warn("billing event publish failed", "routing_key", key, "error", err)
	}
}

func (s *BillingService) observe(operation string, start time.Time, errp *error) {
	result := "success"
	if *errp != nil {
		result = "error"
	}
	metrics.BillingOperations.WithLabelValues(operation, result).Inc()
	metrics.BillingOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

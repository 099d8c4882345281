package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

var ErrWebhookNotConfigured = errors.New("stripe webhook secret is not configured")

// StripeProcessor implements services.PaymentProcessor on the Stripe API.
// Calls are not retried; callers see the first failure.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProcessor(secretKey, webhookSecret string) *StripeProcessor {
	cfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(0)}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return &StripeProcessor{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

var _ services.PaymentProcessor = (*StripeProcessor)(nil)

func (p *StripeProcessor) GetCustomer(ctx context.Context, customerID string) (*services.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := p.api.Customers.Get(customerID, params)
	if err != nil {
		if isNotFound(err) {
			return nil, services.ErrCustomerNotFound
		}
		return nil, err
	}
	if cust.Deleted {
		return nil, services.ErrCustomerNotFound
	}
	c := toCustomer(cust)
	return &c, nil
}

// ListCustomersByEmail reads only the first page of results.
func (p *StripeProcessor) ListCustomersByEmail(ctx context.Context, email string, limit int) ([]services.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	params.Single = true

	var out []services.Customer
	it := p.api.Customers.List(params)
	for it.Next() && len(out) < limit {
		out = append(out, toCustomer(it.Customer()))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *StripeProcessor) ListSubscriptions(ctx context.Context, customerID string) ([]services.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var out []services.Subscription
	it := p.api.Subscriptions.List(params)
	for it.Next() {
		out = append(out, ToSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *StripeProcessor) ScheduleCancel(ctx context.Context, subscriptionID string) (*services.Subscription, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, err
	}
	s := ToSubscription(sub)
	return &s, nil
}

func (p *StripeProcessor) CancelNow(ctx context.Context, subscriptionID string) (*services.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return nil, err
	}
	s := ToSubscription(sub)
	return &s, nil
}

func (p *StripeProcessor) FirstOpenInvoice(ctx context.Context, customerID string) (*services.Invoice, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.InvoiceStatusOpen)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	it := p.api.Invoices.List(params)
	if it.Next() {
		inv := it.Invoice()
		return &services.Invoice{ID: inv.ID, Status: string(inv.Status)}, nil
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (p *StripeProcessor) PayInvoice(ctx context.Context, invoiceID, paymentMethod string) (*services.Invoice, error) {
	params := &stripe.InvoicePayParams{}
	params.Context = ctx
	if paymentMethod != "" {
		params.PaymentMethod = stripe.String(paymentMethod)
	}
	inv, err := p.api.Invoices.Pay(invoiceID, params)
	if err != nil {
		return nil, err
	}
	return &services.Invoice{ID: inv.ID, Status: string(inv.Status)}, nil
}

// ParseWebhook verifies the Stripe-Signature header and reduces the event to
// the fields the subscription mirror needs. Event types the mirror ignores
// come back with only Type set.
func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*services.SubscriptionEvent, error) {
	if p.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, err
	}
	return reduceEvent(event)
}

func reduceEvent(event stripe.Event) (*services.SubscriptionEvent, error) {
	out := &services.SubscriptionEvent{Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case services.EventSubscriptionCreated, services.EventSubscriptionUpdated, services.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("invalid subscription payload: %w", err)
		}
		s := ToSubscription(&sub)
		out.Subscription = &s
		out.CustomerID = s.CustomerID
	case services.EventInvoiceFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("invalid invoice payload: %w", err)
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
	}
	return out, nil
}

// ToSubscription flattens a Stripe subscription. The price is taken from the
// first item.
func ToSubscription(sub *stripe.Subscription) services.Subscription {
	out := services.Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out
}

func toCustomer(cust *stripe.Customer) services.Customer {
	out := services.Customer{
		ID:       cust.ID,
		Email:    cust.Email,
		Metadata: cust.Metadata,
	}
	if cust.InvoiceSettings != nil && cust.InvoiceSettings.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethod = cust.InvoiceSettings.DefaultPaymentMethod.ID
	}
	return out
}

func isNotFound(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}

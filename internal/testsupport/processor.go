package testsupport

import (
	"context"
	"sync"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
)

// FakeProcessor is an in-memory payment processor that records every call.
type FakeProcessor struct {
	mu sync.Mutex

	Customers     map[string]services.Customer
	Subscriptions map[string][]services.Subscription
	OpenInvoices  map[string]*services.Invoice

	// Injected failures.
	ListErr   error
	CancelErr map[string]error
	PayErr    error
	PayStatus string

	ScheduleCalls []string
	CancelCalls   []string
	PayCalls      []PayCall
	EmailSearches []string
}

type PayCall struct {
	InvoiceID     string
	PaymentMethod string
}

func NewFakeProcessor() *FakeProcessor {
	return &FakeProcessor{
		Customers:     make(map[string]services.Customer),
		Subscriptions: make(map[string][]services.Subscription),
		OpenInvoices:  make(map[string]*services.Invoice),
		CancelErr:     make(map[string]error),
		PayStatus:     services.InvoicePaid,
	}
}

var _ services.PaymentProcessor = (*FakeProcessor)(nil)

func (f *FakeProcessor) AddCustomer(c services.Customer, subs ...services.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Customers[c.ID] = c
	for i := range subs {
		subs[i].CustomerID = c.ID
	}
	f.Subscriptions[c.ID] = append(f.Subscriptions[c.ID], subs...)
}

func (f *FakeProcessor) GetCustomer(_ context.Context, customerID string) (*services.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Customers[customerID]
	if !ok {
		return nil, services.ErrCustomerNotFound
	}
	return &c, nil
}

func (f *FakeProcessor) ListCustomersByEmail(_ context.Context, email string, limit int) ([]services.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EmailSearches = append(f.EmailSearches, email)
	var out []services.Customer
	for _, c := range f.Customers {
		if c.Email == email && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *FakeProcessor) ListSubscriptions(_ context.Context, customerID string) ([]services.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	subs := f.Subscriptions[customerID]
	out := make([]services.Subscription, len(subs))
	copy(out, subs)
	return out, nil
}

func (f *FakeProcessor) ScheduleCancel(_ context.Context, subscriptionID string) (*services.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScheduleCalls = append(f.ScheduleCalls, subscriptionID)
	sub := f.find(subscriptionID)
	if sub == nil {
		return nil, services.ErrCustomerNotFound
	}
	sub.CancelAtPeriodEnd = true
	cp := *sub
	return &cp, nil
}

func (f *FakeProcessor) CancelNow(_ context.Context, subscriptionID string) (*services.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CancelCalls = append(f.CancelCalls, subscriptionID)
	if err := f.CancelErr[subscriptionID]; err != nil {
		return nil, err
	}
	sub := f.find(subscriptionID)
	if sub == nil {
		return nil, services.ErrCustomerNotFound
	}
	sub.Status = services.StatusCanceled
	cp := *sub
	return &cp, nil
}

func (f *FakeProcessor) FirstOpenInvoice(_ context.Context, customerID string) (*services.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.OpenInvoices[customerID]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (f *FakeProcessor) PayInvoice(_ context.Context, invoiceID, paymentMethod string) (*services.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PayCalls = append(f.PayCalls, PayCall{InvoiceID: invoiceID, PaymentMethod: paymentMethod})
	if f.PayErr != nil {
		return nil, f.PayErr
	}
	return &services.Invoice{ID: invoiceID, Status: f.PayStatus}, nil
}

func (f *FakeProcessor) find(subscriptionID string) *services.Subscription {
	for cust, subs := range f.Subscriptions {
		for i := range subs {
			if subs[i].ID == subscriptionID {
				return &f.Subscriptions[cust][i]
			}
		}
	}
	return nil
}

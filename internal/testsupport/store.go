package testsupport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/google/uuid"
)

// SubscriptionWrite records one UpdateSubscription call.
type SubscriptionWrite struct {
	UserID string
	State  services.SubscriptionState
}

// MemoryStore is an in-memory stand-in for the Postgres repositories. The
// balance statements hold the mutex for their whole read-modify-write, which
// matches the atomicity of the conditional UPDATE.
type MemoryStore struct {
	mu sync.Mutex

	profiles map[string]*models.Profile
	balances map[string]int64
	usage    map[string]int64
	tasks    map[uuid.UUID]*models.GenerationTask

	// Injected failures.
	ProfileErr error
	BalanceErr error
	UsageErr   error
	UpdateErr  error
	AddErr     map[string]error

	SubscriptionWrites []SubscriptionWrite
	CustomerWrites     map[string]string
	AddCalls           map[string][]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:       make(map[string]*models.Profile),
		balances:       make(map[string]int64),
		usage:          make(map[string]int64),
		tasks:          make(map[uuid.UUID]*models.GenerationTask),
		AddErr:         make(map[string]error),
		CustomerWrites: make(map[string]string),
		AddCalls:       make(map[string][]int64),
	}
}

var (
	_ services.ProfileRepo = (*MemoryStore)(nil)
	_ services.CreditRepo  = (*MemoryStore)(nil)
	_ services.UsageRepo   = (*MemoryStore)(nil)
	_ services.TaskRepo    = (*MemoryStore)(nil)
)

// PutProfile inserts or replaces a profile.
func (m *MemoryStore) PutProfile(p models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Plan == "" {
		p.Plan = "free"
	}
	m.profiles[p.ID] = &p
}

// Profile returns a copy of the stored profile.
func (m *MemoryStore) Profile(userID string) (models.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return models.Profile{}, false
	}
	return *p, true
}

func (m *MemoryStore) SetBalance(userID string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = balance
}

func (m *MemoryStore) Balance(userID string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	return b, ok
}

func (m *MemoryStore) SetUsage(userID, action, period string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[usageKey(userID, action, period)] = count
}

func (m *MemoryStore) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, services.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetProfileByStripeCustomer(_ context.Context, customerID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProfileErr != nil {
		return nil, m.ProfileErr
	}
	for _, p := range m.profiles {
		if p.StripeCustomerID != nil && *p.StripeCustomerID == customerID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, services.ErrProfileNotFound
}

func (m *MemoryStore) SetStripeCustomer(_ context.Context, userID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return services.ErrProfileNotFound
	}
	id := customerID
	p.StripeCustomerID = &id
	m.CustomerWrites[userID] = customerID
	return nil
}

func (m *MemoryStore) UpdateSubscription(_ context.Context, userID string, state services.SubscriptionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubscriptionWrites = append(m.SubscriptionWrites, SubscriptionWrite{UserID: userID, State: state})
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return services.ErrProfileNotFound
	}
	if state.Plan != "" {
		p.Plan = state.Plan
	}
	p.SubscriptionStatus = state.Status
	p.SubscriptionCurrentPeriodEnd = state.PeriodEnd
	p.UpdatedAt = time.Now()
	return nil
}

// EachProfile yields profiles ordered by id, like the SQL implementation.
func (m *MemoryStore) EachProfile(_ context.Context, batchSize int, fn func(batch []models.Profile) error) error {
	m.mu.Lock()
	if m.ProfileErr != nil {
		m.mu.Unlock()
		return m.ProfileErr
	}
	all := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		all = append(all, *p)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) GetBalance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BalanceErr != nil {
		return 0, m.BalanceErr
	}
	b, ok := m.balances[userID]
	if !ok {
		return 0, services.ErrBalanceNotFound
	}
	return b, nil
}

func (m *MemoryStore) AddCredits(_ context.Context, userID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls[userID] = append(m.AddCalls[userID], amount)
	if err := m.AddErr[userID]; err != nil {
		return 0, err
	}
	m.balances[userID] += amount
	return m.balances[userID], nil
}

func (m *MemoryStore) SubtractCredits(_ context.Context, userID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BalanceErr != nil {
		return 0, m.BalanceErr
	}
	b, ok := m.balances[userID]
	if !ok || b < amount {
		return 0, services.ErrInsufficientCredits
	}
	m.balances[userID] = b - amount
	return m.balances[userID], nil
}

func (m *MemoryStore) CountUsage(_ context.Context, userID, action, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UsageErr != nil {
		return 0, m.UsageErr
	}
	return m.usage[usageKey(userID, action, period)], nil
}

func (m *MemoryStore) IncrementUsage(_ context.Context, userID, action, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UsageErr != nil {
		return 0, m.UsageErr
	}
	key := usageKey(userID, action, period)
	m.usage[key]++
	return m.usage[key], nil
}

func (m *MemoryStore) CreateTask(_ context.Context, task *models.GenerationTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTask(_ context.Context, id uuid.UUID) (*models.GenerationTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, services.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) GetTaskByProviderID(_ context.Context, providerTaskID string) (*models.GenerationTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ProviderTaskID == providerTaskID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, services.ErrTaskNotFound
}

func (m *MemoryStore) SaveTask(_ context.Context, task *models.GenerationTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return services.ErrTaskNotFound
	}
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func usageKey(userID, action, period string) string {
	return userID + "|" + action + "|" + period
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrBalanceNotFound     = errors.New("credit balance not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrTaskNotFound        = errors.New("generation task not found")
)

// SubscriptionState is the cached subscription projection written onto a profile.
// An empty Plan leaves the plan column unchanged; a nil PeriodEnd clears it.
type SubscriptionState struct {
	Plan      string
	Status    string
	PeriodEnd *time.Time
}

// ProfileRepo is the profile side of the relational store.
type ProfileRepo interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetProfileByStripeCustomer(ctx context.Context, customerID string) (*models.Profile, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
	UpdateSubscription(ctx context.Context, userID string, state SubscriptionState) error
	EachProfile(ctx context.Context, batchSize int, fn func(batch []models.Profile) error) error
}

// CreditRepo exposes the store's atomic balance statements.
type CreditRepo interface {
	// GetBalance returns ErrBalanceNotFound when the user has no row.
	GetBalance(ctx context.Context, userID string) (int64, error)
	// AddCredits adds amount in one statement, creating the row if needed.
	AddCredits(ctx context.Context, userID string, amount int64) (int64, error)
	// SubtractCredits subtracts amount only if the balance covers it,
	// otherwise it returns ErrInsufficientCredits.
	SubtractCredits(ctx context.Context, userID string, amount int64) (int64, error)
}

// UsageRepo reads and bumps per-month action counters.
type UsageRepo interface {
	CountUsage(ctx context.Context, userID, action, period string) (int64, error)
	IncrementUsage(ctx context.Context, userID, action, period string) (int64, error)
}

// TaskRepo persists generation tasks.
type TaskRepo interface {
	CreateTask(ctx context.Context, task *models.GenerationTask) error
	GetTask(ctx context.Context, id uuid.UUID) (*models.GenerationTask, error)
	GetTaskByProviderID(ctx context.Context, providerTaskID string) (*models.GenerationTask, error)
	SaveTask(ctx context.Context, task *models.GenerationTask) error
}

// EventPublisher emits billing domain events. Implementations must be safe to
// call when no broker is configured.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

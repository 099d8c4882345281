package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/metrics"
)

// ConsumeCost is the number of credits one consuming action takes.
const ConsumeCost int64 = 1

var (
	ErrQuotaExhausted = errors.New("Quota épuisé")
	ErrInvalidAmount  = errors.New("amount must be non-zero")
)

type CreditService struct {
	credits  CreditRepo
	failOpen bool
}

func NewCreditService(credits CreditRepo, failOpen bool) *CreditService {
	return &CreditService{credits: credits, failOpen: failOpen}
}

// GetBalance returns the stored balance. A missing row is a zero balance.
// Store errors follow the read policy: zero when failing open, an error otherwise.
func (s *CreditService) GetBalance(ctx context.Context, userID string) (int64, error) {
	balance, err := s.credits.GetBalance(ctx, userID)
	if err == nil {
		return balance, nil
	}
	if errors.Is(err, ErrBalanceNotFound) {
		return 0, nil
	}
	if s.failOpen {
		metrics.BalanceReadFailures.WithLabelValues("fail_open").Inc()
		slog.Warn("balance read failed, treating as zero", "user_id", userID, "error", err)
		return 0, nil
	}
	metrics.BalanceReadFailures.WithLabelValues("fail_closed").Inc()
	return 0, fmt.Errorf("failed to read balance: %w", err)
}

// Consume takes one credit through the store's conditional decrement.
// Any failure, including store errors, is a rejection and is not retried.
func (s *CreditService) Consume(ctx context.Context, userID string) (int64, error) {
	balance, err := s.credits.SubtractCredits(ctx, userID, ConsumeCost)
	if err != nil {
		metrics.CreditConsumes.WithLabelValues("rejected").Inc()
		if !errors.Is(err, ErrInsufficientCredits) {
			slog.Error("credit consume failed", "user_id", userID, "operation", "consume", "error", err)
		}
		return 0, ErrQuotaExhausted
	}
	metrics.CreditConsumes.WithLabelValues("success").Inc()
	return balance, nil
}

// Adjust applies an administrative correction. Negative amounts are
// subtracted only when the balance covers them.
func (s *CreditService) Adjust(ctx context.Context, userID string, amount int64) (int64, error) {
	switch {
	case amount > 0:
		return s.credits.AddCredits(ctx, userID, amount)
	case amount < 0:
		return s.credits.SubtractCredits(ctx, userID, -amount)
	default:
		return 0, ErrInvalidAmount
	}
}

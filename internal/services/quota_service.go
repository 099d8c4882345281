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

type QuotaService struct {
	profiles ProfileRepo
	usage    UsageRepo
	failOpen bool
	now      func() time.Time
}

func NewQuotaService(profiles ProfileRepo, usage UsageRepo, failOpen bool) *QuotaService {
	return &QuotaService{
		profiles: profiles,
		usage:    usage,
		failOpen: failOpen,
		now:      time.Now,
	}
}

// CanPerformAction fetches the plan and current-month usage, then hands them to
// the pure evaluator. It never writes.
func (s *QuotaService) CanPerformAction(ctx context.Context, userID, rawAction string) (*plans.Decision, error) {
	action, err := plans.ParseAction(rawAction)
	if err != nil {
		return nil, err
	}

	plan, earlyAccess, err := s.planFor(ctx, userID)
	if err != nil {
		metrics.QuotaChecks.WithLabelValues(string(action), "error").Inc()
		return nil, err
	}

	used, err := s.usage.CountUsage(ctx, userID, string(action), models.UsagePeriod(s.now()))
	if err != nil {
		if !s.failOpen {
			metrics.BalanceReadFailures.WithLabelValues("fail_closed").Inc()
			metrics.QuotaChecks.WithLabelValues(string(action), "error").Inc()
			return nil, fmt.Errorf("failed to read usage: %w", err)
		}
		metrics.BalanceReadFailures.WithLabelValues("fail_open").Inc()
		slog.Warn("usage read failed, treating as zero", "user_id", userID, "action", action, "error", err)
		used = 0
	}

	decision := plans.Evaluate(plan, earlyAccess, action, used)
	result := "allowed"
	if !decision.Allowed {
		result = "denied"
	}
	metrics.QuotaChecks.WithLabelValues(string(action), result).Inc()
	return &decision, nil
}

// RecordUsage counts one performed action against the current month.
func (s *QuotaService) RecordUsage(ctx context.Context, userID, rawAction string) (int64, error) {
	action, err := plans.ParseAction(rawAction)
	if err != nil {
		return 0, err
	}
	return s.usage.IncrementUsage(ctx, userID, string(action), models.UsagePeriod(s.now()))
}

func (s *QuotaService) planFor(ctx context.Context, userID string) (plans.Plan, bool, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err == nil {
		return plans.Parse(profile.Plan), profile.EarlyAccess, nil
	}
	if errors.Is(err, ErrProfileNotFound) {
		return plans.Free, false, nil
	}
	if s.failOpen {
		metrics.BalanceReadFailures.WithLabelValues("fail_open").Inc()
		slog.Warn("profile read failed, evaluating as free plan", "user_id", userID, "error", err)
		return plans.Free, false, nil
	}
	metrics.BalanceReadFailures.WithLabelValues("fail_closed").Inc()
	return "", false, fmt.Errorf("failed to read profile: %w", err)
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/plans"
)

const grantBatchSize = 500

// PlanGrant totals one plan's share of a grant run.
type PlanGrant struct {
	Users   int   `json:"users"`
	Credits int64 `json:"credits"`
}

type GrantFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// GrantReport is the outcome of a grant run. Attempted counts profiles whose
// plan carries a positive amount.
type GrantReport struct {
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	DryRun     bool                 `json:"dry_run"`
	Attempted  int                  `json:"attempted"`
	Credited   int                  `json:"credited"`
	Skipped    int                  `json:"skipped"`
	ByPlan     map[string]PlanGrant `json:"by_plan"`
	Failures   []GrantFailure       `json:"failures,omitempty"`
}

func (r *GrantReport) Failed() int {
	return len(r.Failures)
}

type GrantService struct {
	profiles ProfileRepo
	credits  CreditRepo
	events   EventPublisher
}

func NewGrantService(profiles ProfileRepo, credits CreditRepo, events EventPublisher) *GrantService {
	return &GrantService{
		profiles: profiles,
		credits:  credits,
		events:   publisherOrNop(events),
	}
}

// Run tops up every profile with its plan's monthly amount. Per-user failures
// are recorded and the batch continues; partial completion is expected.
// Only a failure to enumerate profiles is returned as an error.
func (s *GrantService) Run(ctx context.Context, dryRun bool) (*GrantReport, error) {
	report := &GrantReport{
		StartedAt: time.Now().UTC(),
		DryRun:    dryRun,
		ByPlan:    make(map[string]PlanGrant),
	}

	err := s.profiles.EachProfile(ctx, grantBatchSize, func(batch []models.Profile) error {
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.grantOne(ctx, &batch[i], report)
		}
		return nil
	})
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		return report, fmt.Errorf("failed to enumerate profiles: %w", err)
	}

	slog.Info("monthly credit grant finished",
		"credited", report.Credited,
		"attempted", report.Attempted,
		"failed", report.Failed(),
		"skipped", report.Skipped,
		"dry_run", dryRun,
	)
	return report, nil
}

func (s *GrantService) grantOne(ctx context.Context, profile *models.Profile, report *GrantReport) {
	plan := plans.Parse(profile.Plan)
	amount := plans.MonthlyCredits(profile.Plan)
	if amount <= 0 {
		report.Skipped++
		return
	}
	report.Attempted++

	if report.DryRun {
		report.addPlan(plan, amount)
		return
	}

	balance, err := s.credits.AddCredits(ctx, profile.ID, amount)
	if err != nil {
		metrics.CreditGrants.WithLabelValues(string(plan), "error").Inc()
		slog.Error("monthly credit grant failed", "user_id", profile.ID, "plan", plan, "operation", "grant", "error", err)
		report.Failures = append(report.Failures, GrantFailure{UserID: profile.ID, Error: err.Error()})
		return
	}

	report.Credited++
	report.addPlan(plan, amount)
	metrics.CreditGrants.WithLabelValues(string(plan), "success").Inc()
	metrics.CreditsGranted.WithLabelValues(string(plan)).Add(float64(amount))

	if err := s.events.Publish(ctx, "credits.granted", map[string]any{
		"user_id": profile.ID,
		"plan":    plan,
		"amount":  amount,
		"balance": balance,
	}); err != nil {
		slog.Warn("credits.granted publish failed", "user_id", profile.ID, "error", err)
	}
}

func (r *GrantReport) addPlan(plan plans.Plan, amount int64) {
	g := r.ByPlan[string(plan)]
	g.Users++
	g.Credits += amount
	r.ByPlan[string(plan)] = g
}

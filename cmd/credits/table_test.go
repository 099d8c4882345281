package main

import (
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
)

func TestRenderTableEmptyHeaders(t *testing.T) {
	if got := renderTable(nil, [][]string{{"x"}}, nil); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestRenderReport(t *testing.T) {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	report := &services.GrantReport{
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Attempted:  3,
		Credited:   2,
		Skipped:    7,
		ByPlan: map[string]services.PlanGrant{
			"pro": {Users: 2, Credits: 1000},
		},
		Failures: []services.GrantFailure{{UserID: "u-broken", Error: "connection reset"}},
	}

	out := renderReport(report)
	for _, want := range []string{"Monthly grant", "Credited", "pro", "1000", "u-broken", "connection reset"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "dry run") {
		t.Fatalf("non-dry run labelled as dry run:\n%s", out)
	}
}

func TestRenderReportDryRunWithoutPlans(t *testing.T) {
	out := renderReport(&services.GrantReport{DryRun: true, ByPlan: map[string]services.PlanGrant{}})
	if !strings.Contains(out, "(dry run)") {
		t.Fatalf("dry run not labelled:\n%s", out)
	}
	if strings.Contains(out, "Plan") {
		t.Fatalf("unexpected plan table:\n%s", out)
	}
}

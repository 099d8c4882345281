package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/plans"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/testsupport"
)

func TestCanPerformAction(t *testing.T) {
	period := models.UsagePeriod(time.Now())

	tests := []struct {
		name        string
		profile     *models.Profile
		used        int64
		action      string
		wantAllowed bool
		wantLimit   int
	}{
		{
			name:        "missing profile is free",
			action:      "uploads",
			used:        4,
			wantAllowed: true,
			wantLimit:   5,
		},
		{
			name:        "free at limit",
			profile:     &models.Profile{ID: "u1", Plan: "free"},
			action:      "uploads",
			used:        5,
			wantAllowed: false,
			wantLimit:   5,
		},
		{
			name:        "early access free gets starter limits",
			profile:     &models.Profile{ID: "u1", Plan: "free", EarlyAccess: true},
			action:      "uploads",
			used:        5,
			wantAllowed: true,
			wantLimit:   25,
		},
		{
			name:        "pro unlimited comments",
			profile:     &models.Profile{ID: "u1", Plan: "pro"},
			action:      "comments",
			used:        100000,
			wantAllowed: true,
			wantLimit:   plans.Unlimited,
		},
		{
			name:        "unknown plan treated as free",
			profile:     &models.Profile{ID: "u1", Plan: "platinum"},
			action:      "playlists",
			used:        3,
			wantAllowed: false,
			wantLimit:   3,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := testsupport.NewMemoryStore()
			if tc.profile != nil {
				store.PutProfile(*tc.profile)
			}
			store.SetUsage("u1", tc.action, period, tc.used)

			d, err := services.NewQuotaService(store, store, true).CanPerformAction(context.Background(), "u1", tc.action)
			if err != nil {
				t.Fatalf("CanPerformAction: %v", err)
			}
			if d.Allowed != tc.wantAllowed || d.Limit != tc.wantLimit {
				t.Fatalf("decision = %+v, want allowed=%v limit=%d", d, tc.wantAllowed, tc.wantLimit)
			}
		})
	}
}

func TestCanPerformActionInvalidAction(t *testing.T) {
	store := testsupport.NewMemoryStore()
	_, err := services.NewQuotaService(store, store, true).CanPerformAction(context.Background(), "u1", "downloads")
	if !errors.Is(err, plans.ErrInvalidAction) {
		t.Fatalf("err = %v, want ErrInvalidAction", err)
	}
}

func TestCanPerformActionReadPolicy(t *testing.T) {
	store := testsupport.NewMemoryStore()
	store.PutProfile(models.Profile{ID: "u1", Plan: "free"})
	store.UsageErr = errStoreDown

	d, err := services.NewQuotaService(store, store, true).CanPerformAction(context.Background(), "u1", "uploads")
	if err != nil {
		t.Fatalf("fail open: %v", err)
	}
	if !d.Allowed || d.Used != 0 {
		t.Fatalf("fail open decision = %+v, want allowed with zero usage", d)
	}

	if _, err := services.NewQuotaService(store, store, false).CanPerformAction(context.Background(), "u1", "uploads"); err == nil {
		t.Fatal("fail closed: expected error")
	}
}

func TestCanPerformActionDoesNotWrite(t *testing.T) {
	store := testsupport.NewMemoryStore()
	store.PutProfile(models.Profile{ID: "u1", Plan: "free"})
	svc := services.NewQuotaService(store, store, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := svc.CanPerformAction(ctx, "u1", "uploads")
		if err != nil {
			t.Fatalf("CanPerformAction: %v", err)
		}
		if d.Used != 0 {
			t.Fatalf("used = %d after check-only calls", d.Used)
		}
	}
}

func TestRecordUsage(t *testing.T) {
	store := testsupport.NewMemoryStore()
	svc := services.NewQuotaService(store, store, true)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := svc.RecordUsage(ctx, "u1", "uploads")
		if err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
		if got != want {
			t.Fatalf("used = %d, want %d", got, want)
		}
	}

	d, err := svc.CanPerformAction(ctx, "u1", "uploads")
	if err != nil {
		t.Fatalf("CanPerformAction: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected denial after five uploads on free, got %+v", d)
	}

	if _, err := svc.RecordUsage(ctx, "u1", "bogus"); !errors.Is(err, plans.ErrInvalidAction) {
		t.Fatalf("err = %v, want ErrInvalidAction", err)
	}
}

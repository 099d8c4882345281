package services_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/testsupport"
)

func seedPlans(store *testsupport.MemoryStore) {
	store.PutProfile(models.Profile{ID: "u-free", Plan: "free"})
	store.PutProfile(models.Profile{ID: "u-starter", Plan: "starter"})
	store.PutProfile(models.Profile{ID: "u-pro", Plan: "pro"})
	store.PutProfile(models.Profile{ID: "u-ent", Plan: "enterprise"})
	store.PutProfile(models.Profile{ID: "u-odd", Plan: "legacy-gold"})
}

func TestGrantRun(t *testing.T) {
	store := testsupport.NewMemoryStore()
	seedPlans(store)
	store.SetBalance("u-pro", 12)
	events := &testsupport.RecordingPublisher{}

	report, err := services.NewGrantService(store, store, events).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := store.AddCalls["u-pro"]; !reflect.DeepEqual(got, []int64{500}) {
		t.Fatalf("pro add calls = %v, want exactly one add of 500", got)
	}
	if b, _ := store.Balance("u-pro"); b != 512 {
		t.Fatalf("pro balance = %d, want 512", b)
	}
	for _, id := range []string{"u-free", "u-odd"} {
		if calls, ok := store.AddCalls[id]; ok {
			t.Fatalf("%s received add calls %v; zero-credit plans must not be written", id, calls)
		}
	}
	if got := store.AddCalls["u-starter"]; !reflect.DeepEqual(got, []int64{100}) {
		t.Fatalf("starter add calls = %v", got)
	}
	if got := store.AddCalls["u-ent"]; !reflect.DeepEqual(got, []int64{2000}) {
		t.Fatalf("enterprise add calls = %v", got)
	}

	if report.Attempted != 3 || report.Credited != 3 || report.Skipped != 2 || report.Failed() != 0 {
		t.Fatalf("report = %+v", report)
	}
	if report.ByPlan["pro"].Credits != 500 || report.ByPlan["enterprise"].Users != 1 {
		t.Fatalf("by plan = %+v", report.ByPlan)
	}
	if len(events.Keys()) != 3 {
		t.Fatalf("events = %v, want one credits.granted per credited user", events.Keys())
	}
}

func TestGrantRunContinuesPastFailures(t *testing.T) {
	store := testsupport.NewMemoryStore()
	seedPlans(store)
	store.AddErr["u-pro"] = errors.New("deadlock detected")

	report, err := services.NewGrantService(store, store, nil).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Credited != 2 || report.Failed() != 1 {
		t.Fatalf("credited=%d failed=%d, want 2/1", report.Credited, report.Failed())
	}
	if report.Failures[0].UserID != "u-pro" {
		t.Fatalf("failure = %+v", report.Failures[0])
	}
	if b, _ := store.Balance("u-ent"); b != 2000 {
		t.Fatalf("enterprise balance = %d; later users must still be credited", b)
	}
}

func TestGrantRunDryRun(t *testing.T) {
	store := testsupport.NewMemoryStore()
	seedPlans(store)

	report, err := services.NewGrantService(store, store, nil).Run(context.Background(), true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.AddCalls) != 0 {
		t.Fatalf("dry run wrote balances: %v", store.AddCalls)
	}
	if report.Attempted != 3 || report.Credited != 0 || report.ByPlan["starter"].Credits != 100 {
		t.Fatalf("report = %+v", report)
	}
}

func TestGrantRunSpansBatches(t *testing.T) {
	store := testsupport.NewMemoryStore()
	const users = 1203
	for i := 0; i < users; i++ {
		store.PutProfile(models.Profile{ID: fmt.Sprintf("u%05d", i), Plan: "starter"})
	}

	report, err := services.NewGrantService(store, store, nil).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Credited != users {
		t.Fatalf("credited = %d, want %d", report.Credited, users)
	}
}

func TestGrantRunEnumerationFailure(t *testing.T) {
	store := testsupport.NewMemoryStore()
	store.ProfileErr = errStoreDown

	if _, err := services.NewGrantService(store, store, nil).Run(context.Background(), false); !errors.Is(err, errStoreDown) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}

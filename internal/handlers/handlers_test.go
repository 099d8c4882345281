package handlers_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/testsupport"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const callbackSecret = "studio-callback-secret"

type fakeParser struct {
	event *services.SubscriptionEvent
	err   error
}

func (p *fakeParser) ParseWebhook([]byte, string) (*services.SubscriptionEvent, error) {
	return p.event, p.err
}

type harness struct {
	app       *fiber.App
	store     *testsupport.MemoryStore
	processor *testsupport.FakeProcessor
	provider  *testsupport.FakeProvider
	parser    *fakeParser
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{
		testsupport.WithAdmins("admin@studio.io", ""),
		testsupport.WithStudioCallbackSecret(callbackSecret),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)

	h := &harness{
		app:       fiber.New(),
		store:     testsupport.NewMemoryStore(),
		processor: testsupport.NewFakeProcessor(),
		provider:  testsupport.NewFakeProvider(),
		parser:    &fakeParser{},
	}

	credits := services.NewCreditService(h.store, cfg.FailOpen())
	quota := services.NewQuotaService(h.store, h.store, cfg.FailOpen())
	billing := services.NewBillingService(h.store, h.processor, nil, cfg.PlanForPrice)
	studio := services.NewStudioService(h.store, credits, h.provider)
	profiles := handlers.NewProfileHandler(h.store, credits)

	routes.Setup(h.app, cfg,
		handlers.NewHealthHandler(func() error { return nil }, nil),
		handlers.NewCreditsHandler(credits),
		handlers.NewQuotaHandler(quota),
		handlers.NewBillingHandler(billing),
		profiles,
		handlers.NewStudioHandler(studio),
		handlers.NewWebhookHandler(h.parser, billing, studio, cfg.StudioCallbackSecret),
		handlers.NewAdminHandler(profiles, credits),
	)
	return h
}

func bearer(t *testing.T, sub, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testsupport.TestJWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + s
}

func (h *harness) call(t *testing.T, method, path, auth, body string, headers ...string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := h.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, out
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/credits/balance"},
		{http.MethodPost, "/api/credits/consume"},
		{http.MethodPost, "/api/quota/check"},
		{http.MethodPost, "/api/quota/record"},
		{http.MethodPost, "/api/billing/cancel"},
		{http.MethodPost, "/api/billing/downgrade"},
		{http.MethodPost, "/api/billing/retry-payment"},
		{http.MethodGet, "/api/me"},
		{http.MethodPost, "/api/studio/generate"},
		{http.MethodGet, "/api/studio/tasks/abc"},
		{http.MethodGet, "/api/admin/profiles/u1"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			status, body := h.call(t, r.method, r.path, "", "")
			if status != http.StatusUnauthorized || body["error"] != "Unauthorized" {
				t.Fatalf("status = %d body = %v", status, body)
			}
		})
	}
}

func TestBalanceAndConsume(t *testing.T) {
	h := newHarness(t)
	auth := bearer(t, "u1", "a@x.io")

	status, body := h.call(t, http.MethodGet, "/api/credits/balance", auth, "")
	if status != http.StatusOK || body["balance"] != float64(0) {
		t.Fatalf("absent balance: %d %v", status, body)
	}

	status, body = h.call(t, http.MethodPost, "/api/credits/consume", auth, "")
	if status != http.StatusForbidden || body["error"] != "Quota épuisé" {
		t.Fatalf("consume without row: %d %v", status, body)
	}

	h.store.SetBalance("u1", 1)
	status, body = h.call(t, http.MethodPost, "/api/credits/consume", auth, "")
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("consume: %d %v", status, body)
	}
	status, body = h.call(t, http.MethodPost, "/api/credits/consume", auth, "")
	if status != http.StatusForbidden || body["error"] != "Quota épuisé" {
		t.Fatalf("consume at zero: %d %v", status, body)
	}
	if b, _ := h.store.Balance("u1"); b != 0 {
		t.Fatalf("balance = %d", b)
	}
}

func TestBalanceReadPolicy(t *testing.T) {
	auth := bearer(t, "u1", "a@x.io")

	open := newHarness(t)
	open.store.BalanceErr = errors.New("connection refused")
	status, body := open.call(t, http.MethodGet, "/api/credits/balance", auth, "")
	if status != http.StatusOK || body["balance"] != float64(0) {
		t.Fatalf("fail open: %d %v", status, body)
	}

	closed := newHarness(t, testsupport.WithFailClosed())
	closed.store.BalanceErr = errors.New("connection refused")
	status, body = closed.call(t, http.MethodGet, "/api/credits/balance", auth, "")
	if status != http.StatusInternalServerError || body["error"] != "Failed to read balance" {
		t.Fatalf("fail closed: %d %v", status, body)
	}
}

func TestQuotaEndpoints(t *testing.T) {
	h := newHarness(t)
	auth := bearer(t, "u1", "a@x.io")
	h.store.PutProfile(models.Profile{ID: "u1", Plan: "free"})

	status, body := h.call(t, http.MethodPost, "/api/quota/check", auth, `{"action":"downloads"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("invalid action: %d %v", status, body)
	}

	status, body = h.call(t, http.MethodPost, "/api/quota/check", auth, `{"action":"playlists"}`)
	if status != http.StatusOK || body["allowed"] != true || body["limit"] != float64(3) {
		t.Fatalf("check: %d %v", status, body)
	}

	for i := 1; i <= 3; i++ {
		status, body = h.call(t, http.MethodPost, "/api/quota/record", auth, `{"action":"playlists"}`)
		if status != http.StatusOK || body["used"] != float64(i) {
			t.Fatalf("record %d: %d %v", i, status, body)
		}
	}

	status, body = h.call(t, http.MethodPost, "/api/quota/check", auth, `{"action":"playlists"}`)
	if status != http.StatusOK || body["allowed"] != false || body["remaining"] != float64(0) {
		t.Fatalf("check at limit: %d %v", status, body)
	}
}

func TestBillingEndpoints(t *testing.T) {
	h := newHarness(t)
	auth := bearer(t, "u1", "a@x.io")

	status, _ := h.call(t, http.MethodPost, "/api/billing/downgrade", auth, "")
	if status != http.StatusNotFound {
		t.Fatalf("downgrade without profile: %d", status)
	}

	cust := "cus_1"
	h.store.PutProfile(models.Profile{ID: "u1", Email: "a@x.io", Plan: "pro", StripeCustomerID: &cust})
	h.processor.AddCustomer(services.Customer{ID: cust}, services.Subscription{ID: "sub_1", Status: services.StatusActive})

	status, body := h.call(t, http.MethodPost, "/api/billing/cancel", auth, "")
	if status != http.StatusOK || body["ok"] != true {
		t.Fatalf("cancel: %d %v", status, body)
	}

	status, body = h.call(t, http.MethodPost, "/api/billing/retry-payment", auth, "")
	if status != http.StatusOK || body["ok"] != false || body["status"] != services.NoOpenInvoice {
		t.Fatalf("retry: %d %v", status, body)
	}

	status, body = h.call(t, http.MethodPost, "/api/billing/downgrade", auth, "")
	if status != http.StatusOK || body["ok"] != true {
		t.Fatalf("downgrade: %d %v", status, body)
	}
	if p, _ := h.store.Profile("u1"); p.Plan != "free" {
		t.Fatalf("plan = %q", p.Plan)
	}
}

func TestMe(t *testing.T) {
	h := newHarness(t)
	auth := bearer(t, "u1", "a@x.io")

	if status, _ := h.call(t, http.MethodGet, "/api/me", auth, ""); status != http.StatusNotFound {
		t.Fatalf("missing profile: %d", status)
	}

	h.store.PutProfile(models.Profile{ID: "u1", Email: "a@x.io", Username: "ana", Plan: "starter"})
	h.store.SetBalance("u1", 42)
	status, body := h.call(t, http.MethodGet, "/api/me", auth, "")
	if status != http.StatusOK || body["plan"] != "starter" || body["balance"] != float64(42) || body["username"] != "ana" {
		t.Fatalf("me: %d %v", status, body)
	}
	if _, leaked := body["stripe_customer_id"]; leaked {
		t.Fatal("stripe customer id must not be exposed")
	}
}

func TestStudioEndpoints(t *testing.T) {
	h := newHarness(t)
	auth := bearer(t, "u1", "a@x.io")

	if status, _ := h.call(t, http.MethodPost, "/api/studio/generate", auth, `{"prompt":""}`); status != http.StatusBadRequest {
		t.Fatalf("empty prompt: %d", status)
	}
	if status, body := h.call(t, http.MethodPost, "/api/studio/generate", auth, `{"prompt":"drum and bass"}`); status != http.StatusForbidden || body["error"] != "Quota épuisé" {
		t.Fatalf("no credits: %d %v", status, body)
	}

	h.store.SetBalance("u1", 1)
	status, body := h.call(t, http.MethodPost, "/api/studio/generate", auth, `{"prompt":"drum and bass","instrumental":true}`)
	if status != http.StatusCreated {
		t.Fatalf("generate: %d %v", status, body)
	}
	taskID, _ := body["id"].(string)
	providerID, _ := body["provider_task_id"].(string)

	if status, _ := h.call(t, http.MethodGet, "/api/studio/tasks/"+taskID, bearer(t, "u2", ""), ""); status != http.StatusNotFound {
		t.Fatalf("other user's task: %d", status)
	}
	if status, _ := h.call(t, http.MethodGet, "/api/studio/tasks/not-a-uuid", auth, ""); status != http.StatusNotFound {
		t.Fatalf("bad id: %d", status)
	}

	callback := `{"task_id":"` + providerID + `","status":"completed","audio_url":"https://cdn.example/x.mp3"}`
	if status, _ := h.call(t, http.MethodPost, "/api/webhooks/studio", "", callback, "X-Studio-Signature", "wrong"); status != http.StatusUnauthorized {
		t.Fatalf("bad signature: %d", status)
	}
	if status, body := h.call(t, http.MethodPost, "/api/webhooks/studio", "", callback, "X-Studio-Signature", callbackSecret); status != http.StatusOK || body["received"] != true {
		t.Fatalf("callback: %d %v", status, body)
	}

	status, body = h.call(t, http.MethodGet, "/api/studio/tasks/"+taskID, auth, "")
	if status != http.StatusOK || body["status"] != models.TaskComplete || body["audio_url"] != "https://cdn.example/x.mp3" {
		t.Fatalf("task: %d %v", status, body)
	}
}

func TestStripeWebhook(t *testing.T) {
	h := newHarness(t)
	cust := "cus_1"
	h.store.PutProfile(models.Profile{ID: "u1", Plan: "pro", SubscriptionStatus: services.StatusActive, StripeCustomerID: &cust})

	h.parser.err = errors.New("no signatures found matching the expected signature")
	if status, _ := h.call(t, http.MethodPost, "/api/webhooks/stripe", "", `{}`); status != http.StatusBadRequest {
		t.Fatalf("bad signature: %d", status)
	}

	h.parser.err = nil
	h.parser.event = &services.SubscriptionEvent{Type: services.EventSubscriptionDeleted, CustomerID: cust}
	status, body := h.call(t, http.MethodPost, "/api/webhooks/stripe", "", `{}`)
	if status != http.StatusOK || body["received"] != true {
		t.Fatalf("webhook: %d %v", status, body)
	}
	if p, _ := h.store.Profile("u1"); p.Plan != "free" || p.SubscriptionStatus != services.StatusCanceled {
		t.Fatalf("profile = %+v", p)
	}
}

func TestAdminEndpoints(t *testing.T) {
	h := newHarness(t)
	admin := bearer(t, "u-admin", "admin@studio.io")
	h.store.PutProfile(models.Profile{ID: "u1", Plan: "pro"})

	if status, _ := h.call(t, http.MethodGet, "/api/admin/profiles/u1", bearer(t, "u1", "a@x.io"), ""); status != http.StatusForbidden {
		t.Fatalf("non-admin: %d", status)
	}

	status, body := h.call(t, http.MethodPost, "/api/admin/credits/u1", admin, `{"amount":25}`)
	if status != http.StatusOK || body["balance"] != float64(25) {
		t.Fatalf("grant: %d %v", status, body)
	}
	if status, _ := h.call(t, http.MethodPost, "/api/admin/credits/u1", admin, `{"amount":0}`); status != http.StatusBadRequest {
		t.Fatalf("zero amount: %d", status)
	}
	if status, _ := h.call(t, http.MethodPost, "/api/admin/credits/u1", admin, `{"amount":-26}`); status != http.StatusConflict {
		t.Fatalf("overdraw: %d", status)
	}

	status, body = h.call(t, http.MethodGet, "/api/admin/profiles/u1", admin, "")
	if status != http.StatusOK || body["balance"] != float64(25) || body["plan"] != "pro" {
		t.Fatalf("profile: %d %v", status, body)
	}
}

func TestAdminCreditsKeyedByRequestedUser(t *testing.T) {
	h := newHarness(t)
	admin := bearer(t, "u-admin", "admin@studio.io")

	for _, id := range []string{"user-aaaa", "user-bbbb", "user-cccc"} {
		if status, body := h.call(t, http.MethodPost, "/api/admin/credits/"+id, admin, `{"amount":7}`); status != http.StatusOK {
			t.Fatalf("grant %s: %d %v", id, status, body)
		}
		// Unrelated traffic reuses the request buffers.
		h.call(t, http.MethodGet, "/api/admin/profiles/zzzz-zzzz", admin, "")
	}
	for _, id := range []string{"user-aaaa", "user-bbbb", "user-cccc"} {
		if b, ok := h.store.Balance(id); !ok || b != 7 {
			t.Fatalf("balance[%s] = %d, %v, want 7", id, b, ok)
		}
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	status, body := h.call(t, http.MethodGet, "/api/health", "", "")
	if status != http.StatusOK || body["status"] != "ok" || body["cache"] != "disabled" {
		t.Fatalf("health: %d %v", status, body)
	}
}

package studio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
)

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		var body generateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Prompt != "lofi rain" || !body.Instrumental {
			t.Errorf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task_id":"p-1","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key-1", time.Second)
	task, err := c.Submit(context.Background(), services.GenerationRequest{Prompt: "lofi rain", Instrumental: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if task.ID != "p-1" || task.Status != models.TaskPending {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tasks/p-2" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"SUCCEEDED","audio_url":"https://cdn/a.mp3","metadata":{"duration":92}}`))
	}))
	defer srv.Close()

	task, err := NewClient(srv.URL, "", time.Second).Status(context.Background(), "p-2")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if task.ID != "p-2" || task.Status != models.TaskComplete || task.AudioURL != "https://cdn/a.mp3" {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.Metadata["duration"] != float64(92) {
		t.Fatalf("metadata = %v", task.Metadata)
	}
}

func TestProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "", time.Second).Submit(context.Background(), services.GenerationRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestNotConfigured(t *testing.T) {
	_, err := NewClient("", "", 0).Status(context.Background(), "p")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"queued":    models.TaskPending,
		"running":   models.TaskProcessing,
		"streaming": models.TaskProcessing,
		"Completed": models.TaskComplete,
		" success ": models.TaskComplete,
		"error":     models.TaskFailed,
		"cancelled": models.TaskFailed,
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

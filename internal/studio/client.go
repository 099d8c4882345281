package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
)

var ErrNotConfigured = errors.New("studio provider is not configured")

const maxResponseBytes = 1 << 20

type generateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style,omitempty"`
	Instrumental bool   `json:"instrumental"`
}

// TaskPayload is the provider's task representation, used by both the
// status endpoint and the push callback.
type TaskPayload struct {
	TaskID   string         `json:"task_id"`
	Status   string         `json:"status"`
	AudioURL string         `json:"audio_url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToProviderTask normalizes the payload for the studio service.
func (p TaskPayload) ToProviderTask() *services.ProviderTask {
	return &services.ProviderTask{
		ID:       p.TaskID,
		Status:   NormalizeStatus(p.Status),
		AudioURL: p.AudioURL,
		Metadata: p.Metadata,
	}
}

// Client talks to the generative-audio provider over JSON/HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

var _ services.AudioProvider = (*Client)(nil)

func (c *Client) Submit(ctx context.Context, req services.GenerationRequest) (*services.ProviderTask, error) {
	payload, err := json.Marshal(generateRequest{
		Prompt:       req.Prompt,
		Style:        req.Style,
		Instrumental: req.Instrumental,
	})
	if err != nil {
		return nil, err
	}

	var task TaskPayload
	if err := c.do(ctx, http.MethodPost, "/v1/generate", bytes.NewReader(payload), &task); err != nil {
		return nil, err
	}
	if task.TaskID == "" {
		return nil, errors.New("studio provider returned no task id")
	}
	return task.ToProviderTask(), nil
}

func (c *Client) Status(ctx context.Context, providerTaskID string) (*services.ProviderTask, error) {
	var task TaskPayload
	if err := c.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(providerTaskID), nil, &task); err != nil {
		return nil, err
	}
	if task.TaskID == "" {
		task.TaskID = providerTaskID
	}
	return task.ToProviderTask(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("studio provider error: status %d", resp.StatusCode)
	}
	return json.Unmarshal(respBody, out)
}

// NormalizeStatus maps provider vocabulary onto the task statuses. An empty
// status stays empty; unknown values count as still processing.
func NormalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "queued", "submitted", "pending":
		return models.TaskPending
	case "complete", "completed", "succeeded", "success":
		return models.TaskComplete
	case "failed", "error", "canceled", "cancelled":
		return models.TaskFailed
	default:
		return models.TaskProcessing
	}
}

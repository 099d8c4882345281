package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const maxPromptLength = 3000

var (
	ErrPromptRequired = errors.New("prompt is required")
	ErrPromptTooLong  = errors.New("prompt must be at most 3000 characters")
)

// GenerationRequest is what the user asks the audio provider for.
type GenerationRequest struct {
	Prompt       string
	Style        string
	Instrumental bool
}

// ProviderTask is the provider's view of a task, with statuses already
// normalized to the models.Task* values.
type ProviderTask struct {
	ID       string
	Status   string
	AudioURL string
	Metadata map[string]any
}

// AudioProvider is the generative-audio provider API.
type AudioProvider interface {
	Submit(ctx context.Context, req GenerationRequest) (*ProviderTask, error)
	Status(ctx context.Context, providerTaskID string) (*ProviderTask, error)
}

type StudioService struct {
	tasks    TaskRepo
	credits  *CreditService
	provider AudioProvider
}

func NewStudioService(tasks TaskRepo, credits *CreditService, provider AudioProvider) *StudioService {
	return &StudioService{tasks: tasks, credits: credits, provider: provider}
}

// Generate checks the balance, submits to the provider and takes one credit
// once the provider has accepted the request.
func (s *StudioService) Generate(ctx context.Context, userID string, req GenerationRequest) (*models.GenerationTask, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, ErrPromptRequired
	}
	if len([]rune(req.Prompt)) > maxPromptLength {
		return nil, ErrPromptTooLong
	}

	balance, err := s.credits.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		return nil, ErrQuotaExhausted
	}

	submitted, err := s.provider.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}

	if _, err := s.credits.Consume(ctx, userID); err != nil {
		slog.Warn("generation submitted but credit consume lost the race",
			"user_id", userID, "provider_task_id", submitted.ID)
		return nil, err
	}

	task := &models.GenerationTask{
		ID:             uuid.New(),
		UserID:         userID,
		ProviderTaskID: submitted.ID,
		Prompt:         req.Prompt,
		Style:          req.Style,
		Instrumental:   req.Instrumental,
		Status:         models.TaskPending,
	}
	applyProviderTask(task, submitted)
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save generation task: %w", err)
	}

	slog.Info("generation task submitted", "user_id", userID, "task_id", task.ID, "provider_task_id", task.ProviderTaskID)
	return task, nil
}

// GetTask returns the caller's task, refreshing it from the provider while it
// is still running. A failed poll returns the stored state.
func (s *StudioService) GetTask(ctx context.Context, userID string, id uuid.UUID) (*models.GenerationTask, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, ErrTaskNotFound
	}
	if task.Terminal() {
		return task, nil
	}

	status, err := s.provider.Status(ctx, task.ProviderTaskID)
	if err != nil {
		slog.Warn("generation status poll failed", "task_id", task.ID, "error", err)
		return task, nil
	}
	if !applyProviderTask(task, status) {
		return task, nil
	}
	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save generation task: %w", err)
	}
	return task, nil
}

// ApplyCallback records a pushed provider update.
func (s *StudioService) ApplyCallback(ctx context.Context, update *ProviderTask) error {
	task, err := s.tasks.GetTaskByProviderID(ctx, update.ID)
	if err != nil {
		return err
	}
	if task.Terminal() || !applyProviderTask(task, update) {
		return nil
	}
	return s.tasks.SaveTask(ctx, task)
}

// applyProviderTask copies provider state onto the task and reports whether
// anything changed.
func applyProviderTask(task *models.GenerationTask, p *ProviderTask) bool {
	changed := false
	if p.Status != "" && p.Status != task.Status {
		task.Status = p.Status
		changed = true
	}
	if p.AudioURL != "" && p.AudioURL != task.AudioURL {
		task.AudioURL = p.AudioURL
		changed = true
	}
	if len(p.Metadata) > 0 {
		if b, err := json.Marshal(p.Metadata); err == nil && string(b) != string(task.Metadata) {
			task.Metadata = datatypes.JSON(b)
			changed = true
		}
	}
	return changed
}

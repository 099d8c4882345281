package store

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

var _ services.TaskRepo = (*TaskStore)(nil)

func (s *TaskStore) CreateTask(ctx context.Context, task *models.GenerationTask) error {
	return s.db.WithContext(ctx).Create(task).Error
}

func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (*models.GenerationTask, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *TaskStore) GetTaskByProviderID(ctx context.Context, providerTaskID string) (*models.GenerationTask, error) {
	return s.first(ctx, "provider_task_id = ?", providerTaskID)
}

func (s *TaskStore) SaveTask(ctx context.Context, task *models.GenerationTask) error {
	return s.db.WithContext(ctx).Model(task).Updates(map[string]interface{}{
		"status":    task.Status,
		"audio_url": task.AudioURL,
		"metadata":  task.Metadata,
	}).Error
}

func (s *TaskStore) first(ctx context.Context, query string, arg interface{}) (*models.GenerationTask, error) {
	var task models.GenerationTask
	if err := s.db.WithContext(ctx).First(&task, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskComplete   = "complete"
	TaskFailed     = "failed"
)

// GenerationTask tracks one generative-audio request submitted to the provider.
type GenerationTask struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID         string         `gorm:"size:255;not null;index" json:"user_id"`
	ProviderTaskID string         `gorm:"size:255;uniqueIndex" json:"provider_task_id"`
	Prompt         string         `gorm:"type:text" json:"prompt"`
	Style          string         `gorm:"size:255" json:"style,omitempty"`
	Instrumental   bool           `json:"instrumental"`
	Status         string         `gorm:"size:20;not null;default:'pending'" json:"status"`
	AudioURL       string         `gorm:"type:text" json:"audio_url,omitempty"`
	Metadata       datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (GenerationTask) TableName() string {
	return "generation_tasks"
}

// Terminal reports whether the provider will not change the task any further.
func (t *GenerationTask) Terminal() bool {
	return t.Status == TaskComplete || t.Status == TaskFailed
}

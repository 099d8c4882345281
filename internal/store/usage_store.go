package store

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsageStore struct {
	db *gorm.DB
}

func NewUsageStore(db *gorm.DB) *UsageStore {
	return &UsageStore{db: db}
}

var _ services.UsageRepo = (*UsageStore)(nil)

func (s *UsageStore) CountUsage(ctx context.Context, userID, action, period string) (int64, error) {
	var row models.UsageCounter
	err := s.db.WithContext(ctx).
		First(&row, "user_id = ? AND action = ? AND period = ?", userID, action, period).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.Count, nil
}

func (s *UsageStore) IncrementUsage(ctx context.Context, userID, action, period string) (int64, error) {
	row := models.UsageCounter{UserID: userID, Action: action, Period: period, Count: 1, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "action"}, {Name: "period"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":      gorm.Expr("usage_counters.count + 1"),
				"updated_at": gorm.Expr("EXCLUDED.updated_at"),
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "count"}}},
	).Create(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Count, nil
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"gorm.io/gorm"
)

type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

var _ services.ProfileRepo = (*ProfileStore)(nil)

func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *ProfileStore) GetProfileByStripeCustomer(ctx context.Context, customerID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "stripe_customer_id = ?", customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *ProfileStore) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	res := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"stripe_customer_id": customerID,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrProfileNotFound
	}
	return nil
}

func (s *ProfileStore) UpdateSubscription(ctx context.Context, userID string, state services.SubscriptionState) error {
	updates := map[string]interface{}{
		"subscription_status":             state.Status,
		"subscription_current_period_end": state.PeriodEnd,
		"updated_at":                      time.Now(),
	}
	if state.Plan != "" {
		updates["plan"] = state.Plan
	}

	res := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrProfileNotFound
	}
	return nil
}

// EachProfile walks the whole profiles table in primary-key order.
func (s *ProfileStore) EachProfile(ctx context.Context, batchSize int, fn func(batch []models.Profile) error) error {
	var batch []models.Profile
	res := s.db.WithContext(ctx).Order("id").FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	return res.Error
}

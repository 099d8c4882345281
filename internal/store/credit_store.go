package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	balanceKeyPrefix = "studio:balance:"
	balanceCacheTTL  = 5 * time.Minute
)

// setIfNewer stores "version:balance" unless the cached entry already
// carries the same or a later version.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local v = tonumber(string.match(cur, '^(%d+):'))
  if v and v >= tonumber(ARGV[1]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1] .. ':' .. ARGV[2], 'PX', ARGV[3])
return 1
`)

// CreditStore runs the balance statements against Postgres and keeps a
// read-through Redis copy. The cache is optional; rdb may be nil.
type CreditStore struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewCreditStore(db *gorm.DB, rdb *redis.Client) *CreditStore {
	return &CreditStore{db: db, rdb: rdb}
}

var _ services.CreditRepo = (*CreditStore)(nil)

var balanceReturning = clause.Returning{Columns: []clause.Column{{Name: "balance"}, {Name: "version"}}}

func (s *CreditStore) GetBalance(ctx context.Context, userID string) (int64, error) {
	if balance, ok := s.cached(ctx, userID); ok {
		return balance, nil
	}

	var row models.CreditBalance
	if err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, services.ErrBalanceNotFound
		}
		return 0, err
	}

	s.remember(ctx, userID, row.Version, row.Balance)
	return row.Balance, nil
}

// AddCredits is a single INSERT ... ON CONFLICT DO UPDATE statement.
func (s *CreditStore) AddCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("add amount must be positive, got %d", amount)
	}
	row := models.CreditBalance{UserID: userID, Balance: amount, Version: 1, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance":    gorm.Expr("credit_balances.balance + EXCLUDED.balance"),
				"version":    gorm.Expr("credit_balances.version + 1"),
				"updated_at": gorm.Expr("EXCLUDED.updated_at"),
			}),
		},
		balanceReturning,
	).Create(&row).Error
	if err != nil {
		return 0, err
	}
	s.remember(ctx, userID, row.Version, row.Balance)
	return row.Balance, nil
}

// SubtractCredits is a single conditional UPDATE; the WHERE clause keeps the
// balance from going negative under concurrent callers.
func (s *CreditStore) SubtractCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("subtract amount must be positive, got %d", amount)
	}
	var row models.CreditBalance
	res := s.db.WithContext(ctx).Model(&row).
		Clauses(balanceReturning).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, services.ErrInsufficientCredits
	}
	s.remember(ctx, userID, row.Version, row.Balance)
	return row.Balance, nil
}

func (s *CreditStore) cached(ctx context.Context, userID string) (int64, bool) {
	if s.rdb == nil {
		return 0, false
	}
	val, err := s.rdb.Get(ctx, balanceKeyPrefix+userID).Result()
	if err != nil {
		return 0, false
	}
	_, balance, ok := strings.Cut(val, ":")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(balance, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// remember caches a balance read or returned at the given row version. If the
// write fails the entry is dropped so the next read goes to Postgres.
func (s *CreditStore) remember(ctx context.Context, userID string, version, balance int64) {
	if s.rdb == nil {
		return
	}
	key := balanceKeyPrefix + userID
	err := setIfNewer.Run(ctx, s.rdb, []string{key}, version, balance, balanceCacheTTL.Milliseconds()).Err()
	if err == nil {
		return
	}
	slog.Warn("balance cache set failed", "user_id", userID, "error", err)
	if err := s.rdb.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
		slog.Warn("balance cache invalidation failed", "user_id", userID, "error", err)
	}
}

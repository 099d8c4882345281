package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const (
	grantLockKey    = "studio:lock:monthly-grant"
	grantLockExpiry = 30 * time.Minute
)

var ErrGrantInProgress = errors.New("another monthly grant run holds the lock")

// GrantJob runs the monthly grant under a cluster-wide lock. Without Redis it
// runs unlocked.
type GrantJob struct {
	grants *services.GrantService
	rs     *redsync.Redsync
}

func NewGrantJob(grants *services.GrantService, rdb *redis.Client) *GrantJob {
	job := &GrantJob{grants: grants}
	if rdb != nil {
		job.rs = redsync.New(goredis.NewPool(rdb))
	}
	return job
}

// Run grants once. A held lock is reported as ErrGrantInProgress rather than
// waited on, so overlapping schedules skip instead of queueing.
func (j *GrantJob) Run(ctx context.Context, dryRun bool) (*services.GrantReport, error) {
	if j.rs == nil {
		slog.Warn("running monthly grant without a lock, redis not configured")
		return j.grants.Run(ctx, dryRun)
	}

	mutex := j.rs.NewMutex(grantLockKey, redsync.WithExpiry(grantLockExpiry), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			metrics.GrantLocks.WithLabelValues("busy").Inc()
			return nil, ErrGrantInProgress
		}
		metrics.GrantLocks.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to acquire grant lock: %w", err)
	}
	metrics.GrantLocks.WithLabelValues("acquired").Inc()
	defer func() {
		if ok, err := mutex.Unlock(); !ok || err != nil {
			slog.Warn("failed to release grant lock", "error", err)
		}
	}()

	return j.grants.Run(ctx, dryRun)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jpillora/backoff"
)

var (
	ErrNotFound        = errors.New("key not found")
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// Lock is the handle returned by Acquire. Token identifies the holder so that
// only the holder can release it.
type Lock struct {
	Resources []string
	Token     string
	Expiry    time.Time
}

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string, by int64) (int64, error)
	Delete(ctx context.Context, key string) error
	// Acquire takes an exclusive lock on all resources, waiting up to the
	// configured acquire timeout.
	Acquire(ctx context.Context, resources []string, ttl time.Duration) (*Lock, error)
	Unlock(ctx context.Context, lock *Lock) error
}

func ResubmissionCountKey(chainID uint64, transactionID string) string {
	return fmt.Sprintf("resubmission_count_%d_%s", chainID, transactionID)
}

func FailedSubmissionCountKey(chainID uint64, transactionID string) string {
	return fmt.Sprintf("failed_submission_count_%d_%s", chainID, transactionID)
}

func FundingLockKey(owner common.Address, chainID uint64) string {
	return fmt.Sprintf("fund_relayer_%s_%d", strings.ToLower(owner.Hex()), chainID)
}

func lockKey(resource string) string {
	return "lock:" + resource
}

// acquireWithin polls try until it succeeds, ctx is done or wait elapses.
func acquireWithin(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	b := &backoff.Backoff{
		Min:    10 * time.Millisecond,
		Max:    500 * time.Millisecond,
		Factor: 2,
		Jitter: true,
	}
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrLockNotAcquired
		}
		d := b.Duration()
		if d > remaining {
			d = remaining
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		case <-time.After(d):
		}
	}
}

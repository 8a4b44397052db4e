package authority

import (
	"context"
	"time"

	"github.com/bcrosbie/namecache/internal/domain"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// Retrying re-issues lookups that failed with a RemoteError. Absent results
// are answers, not failures, and are returned immediately.
type Retrying struct {
	next            Resolver
	maxRetries      uint64
	initialInterval time.Duration
	logger          *zap.Logger
}

var _ Resolver = (*Retrying)(nil)

func NewRetrying(next Resolver, maxRetries int, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{
		next:            next,
		maxRetries:      uint64(max(maxRetries, 0)),
		initialInterval: 200 * time.Millisecond,
		logger:          logger,
	}
}

func (r *Retrying) Resolve(ctx context.Context, namehash string) (string, bool, error) {
	var (
		name    string
		found   bool
		attempt int
	)
	operation := func() error {
		attempt++
		var err error
		name, found, err = r.next.Resolve(ctx, namehash)
		if err != nil && domain.IsCode(err, domain.CodeRemoteUnavailable) && ctx.Err() == nil {
			r.logger.Debug("authority lookup failed, will retry",
				zap.String("namehash", namehash), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initialInterval
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, r.maxRetries), ctx))
	if err != nil {
		return "", false, err
	}
	return name, found, nil
}

package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bcrosbie/namecache/internal/address"
	"github.com/bcrosbie/namecache/internal/authority"
	"github.com/bcrosbie/namecache/internal/covenant"
	"github.com/bcrosbie/namecache/internal/domain"
	"github.com/bcrosbie/namecache/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ServiceName    = "namecache"
	ServiceVersion = "1.0.0"

	defaultResolveConcurrency = 8
	// Bounds the batch write when the caller has already gone away.
	detachedWriteTimeout = 10 * time.Second
	// Bounds one started authority lookup once it no longer follows the caller.
	detachedLookupTimeout = 30 * time.Second
)

type Options struct {
	StoreDriver        string
	ResolveConcurrency int
}

// CacheService resolves namehashes through the store, falling back to the
// authority for misses and writing successful answers back.
type CacheService struct {
	store       store.NameStore
	resolver    authority.Resolver
	addresses   *address.Chain
	logger      *zap.Logger
	storeDriver string
	concurrency int
}

func NewCacheService(
	nameStore store.NameStore,
	resolver authority.Resolver,
	addresses *address.Chain,
	logger *zap.Logger,
	opts Options,
) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addresses == nil {
		addresses = address.NewChain(logger)
	}
	concurrency := opts.ResolveConcurrency
	if concurrency <= 0 {
		concurrency = defaultResolveConcurrency
	}
	return &CacheService{
		store:       nameStore,
		resolver:    resolver,
		addresses:   addresses,
		logger:      logger,
		storeDriver: opts.StoreDriver,
		concurrency: concurrency,
	}
}

func (c *CacheService) Health() map[string]any {
	return map[string]any{
		"status":       "ok",
		"store_driver": c.storeDriver,
		"time_utc":     time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func (c *CacheService) Status(ctx context.Context) (domain.StatusReport, error) {
	count, err := c.store.CountNames(ctx)
	if err != nil {
		return domain.StatusReport{}, err
	}
	return domain.StatusReport{
		Status:      "ok",
		Service:     ServiceName,
		Version:     ServiceVersion,
		NamesCached: count,
		StoreDriver: c.storeDriver,
	}, nil
}

// ResolveOne returns the cached name for namehash, asking the authority on a
// miss. An authority with no mapping yields Source=miss and the
// domain.UnresolvedName placeholder; nothing is persisted in that case.
func (c *CacheService) ResolveOne(ctx context.Context, namehash string) (domain.ResolutionResult, error) {
	namehash = strings.TrimSpace(namehash)
	if namehash == "" {
		return domain.ResolutionResult{}, domain.InvalidArgument("namehash is required")
	}

	record, found, err := c.store.GetName(ctx, namehash)
	if err != nil {
		return domain.ResolutionResult{}, err
	}
	if found {
		return domain.ResolutionResult{Namehash: namehash, Name: record.Name, Source: domain.SourceCache}, nil
	}

	name, found, err := c.resolver.Resolve(ctx, namehash)
	if err != nil {
		c.logger.Warn("authority lookup failed", zap.String("namehash", namehash), zap.Error(err))
		return domain.ResolutionResult{}, domain.ResolutionError(namehash, err)
	}
	if !found || strings.TrimSpace(name) == "" {
		return domain.ResolutionResult{Namehash: namehash, Name: domain.UnresolvedName, Source: domain.SourceMiss}, nil
	}

	if err := c.store.UpsertName(ctx, domain.NameRecord{Namehash: namehash, Name: name}); err != nil {
		return domain.ResolutionResult{}, err
	}
	c.logger.Debug("cached name", zap.String("namehash", namehash), zap.String("name", name))
	return domain.ResolutionResult{Namehash: namehash, Name: name, Source: domain.SourceResolved}, nil
}

// ResolveBatch renders a display string for every covenant, in input order.
// Each distinct namehash costs at most one store round trip (shared) and one
// authority call; authority failures only affect the records that reference
// the failing hash.
func (c *CacheService) ResolveBatch(ctx context.Context, covenants []domain.CovenantRecord) ([]domain.CovenantDisplay, error) {
	known, err := c.resolveNames(ctx, covenant.Namehashes(covenants))
	if err != nil {
		return nil, err
	}

	results := make([]domain.CovenantDisplay, len(covenants))
	for i, record := range covenants {
		results[i] = domain.CovenantDisplay{
			Covenant: record,
			Display:  covenant.Display(record, known),
		}
	}
	return results, nil
}

// ResolveCovenant handles a single covenant object.
func (c *CacheService) ResolveCovenant(ctx context.Context, record domain.CovenantRecord) (domain.CovenantResult, error) {
	if !record.HasAction() {
		return domain.CovenantResult{Success: false, Data: record}, nil
	}
	results, err := c.ResolveBatch(ctx, []domain.CovenantRecord{record})
	if err != nil {
		return domain.CovenantResult{}, err
	}
	return domain.CovenantResult{Success: true, Data: record, Display: results[0].Display}, nil
}

func (c *CacheService) ResolveAddress(ctx context.Context, name string) (domain.AddressResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.AddressResult{}, domain.InvalidArgument("domain is required")
	}
	result, found := c.addresses.Resolve(ctx, name)
	if !found {
		return domain.AddressResult{
			Success: false,
			Name:    name,
			Error:   "No HIP02 or WALLET record found for this domain",
		}, nil
	}
	return domain.AddressResult{
		Success: true,
		Address: result.Address,
		Method:  result.Method,
		Name:    name,
	}, nil
}

// resolveNames returns namehash -> name for every hash that is cached or
// could be resolved. Store failures abort; authority failures are dropped.
func (c *CacheService) resolveNames(ctx context.Context, namehashes []string) (map[string]string, error) {
	if len(namehashes) == 0 {
		return map[string]string{}, nil
	}

	known, err := c.store.GetNames(ctx, namehashes)
	if err != nil {
		return nil, err
	}

	missing := make([]string, 0, len(namehashes))
	for _, namehash := range namehashes {
		if _, ok := known[namehash]; !ok {
			missing = append(missing, namehash)
		}
	}
	if len(missing) == 0 {
		return known, nil
	}

	resolved := c.fetchMissing(ctx, missing)
	if len(resolved) == 0 {
		return known, nil
	}

	// Lookups already answered are kept even if the caller has cancelled.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedWriteTimeout)
	defer cancel()
	if err := c.store.UpsertNames(writeCtx, resolved); err != nil {
		return nil, err
	}
	for _, record := range resolved {
		known[record.Namehash] = record.Name
	}
	c.logger.Debug("batch resolved names",
		zap.Int("requested", len(namehashes)),
		zap.Int("missing", len(missing)),
		zap.Int("resolved", len(resolved)))
	return known, nil
}

// fetchMissing asks the authority for each hash, at most c.concurrency at a
// time. Hashes not yet started when ctx ends are skipped; lookups already
// started run to completion so their answers can still be cached.
func (c *CacheService) fetchMissing(ctx context.Context, missing []string) []domain.NameRecord {
	var (
		mu       sync.Mutex
		resolved = make([]domain.NameRecord, 0, len(missing))
		group    errgroup.Group
	)
	group.SetLimit(c.concurrency)
	detached := context.WithoutCancel(ctx)

	for _, namehash := range missing {
		if ctx.Err() != nil {
			break
		}
		namehash := namehash
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			lookupCtx, cancel := context.WithTimeout(detached, detachedLookupTimeout)
			defer cancel()

			name, found, err := c.resolver.Resolve(lookupCtx, namehash)
			if err != nil {
				c.logger.Warn("authority lookup failed", zap.String("namehash", namehash), zap.Error(err))
				return nil
			}
			if !found || strings.TrimSpace(name) == "" {
				return nil
			}
			mu.Lock()
			resolved = append(resolved, domain.NameRecord{Namehash: namehash, Name: name})
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return resolved
}

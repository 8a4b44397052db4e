// Package address resolves a domain to a wallet address using the HIP-02
// well-known file and, failing that, a wallet TXT record.
package address

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Lookup resolves a domain to an address. found is false when the domain
// publishes no usable record.
type Lookup interface {
	Method() string
	Lookup(ctx context.Context, domain string) (address string, found bool, err error)
}

type Result struct {
	Address string
	Method  string
}

// Chain tries each lookup in order and returns the first address found.
// A lookup that errors is logged and treated as having no record.
type Chain struct {
	lookups []Lookup
	logger  *zap.Logger
}

func NewChain(logger *zap.Logger, lookups ...Lookup) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{lookups: lookups, logger: logger}
}

func (c *Chain) Resolve(ctx context.Context, domain string) (Result, bool) {
	for _, lookup := range c.lookups {
		if ctx.Err() != nil {
			return Result{}, false
		}
		address, found, err := lookup.Lookup(ctx, domain)
		if err != nil {
			c.logger.Warn("address lookup failed",
				zap.String("method", lookup.Method()), zap.String("domain", domain), zap.Error(err))
			continue
		}
		if found {
			return Result{Address: address, Method: lookup.Method()}, true
		}
	}
	return Result{}, false
}

// plausibleAddress rejects bodies that are clearly not a single address,
// such as HTML error pages served with a 200.
func plausibleAddress(candidate string) bool {
	if candidate == "" || len(candidate) > 128 {
		return false
	}
	return !strings.ContainsAny(candidate, " \t\r\n<>\"'")
}

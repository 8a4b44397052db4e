// Package authority talks to the naming authority that maps namehashes to
// names.
package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bcrosbie/namecache/internal/domain"
)

// Resolver resolves a single namehash. found is false when the authority
// answered successfully but has no mapping; err is a domain.RemoteError for
// anything else.
type Resolver interface {
	Resolve(ctx context.Context, namehash string) (name string, found bool, err error)
}

const maxResponseBytes = 1 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Resolver = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, domain.InvalidArgument(fmt.Sprintf("authority url %q is not an absolute URL", baseURL))
	}
	return &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type namehashResponse struct {
	Result *string `json:"result"`
}

func (c *Client) Resolve(ctx context.Context, namehash string) (string, bool, error) {
	endpoint := c.baseURL + "/api/v1/namehash/" + url.PathEscape(namehash)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, domain.RemoteError("failed to build authority request", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", false, domain.RemoteError("authority request failed", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBytes))
		return "", false, domain.RemoteError(fmt.Sprintf("authority returned status %d", response.StatusCode), nil)
	}

	var decoded namehashResponse
	if err := json.NewDecoder(io.LimitReader(response.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return "", false, domain.RemoteError("authority response is not valid JSON", err)
	}
	if decoded.Result == nil || strings.TrimSpace(*decoded.Result) == "" {
		return "", false, nil
	}
	return *decoded.Result, true, nil
}

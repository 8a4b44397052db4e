package address

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxHIP2BodyBytes = 4096

// HIP2 reads https://{domain}/.well-known/wallets/HNS.
type HIP2 struct {
	urlFormat  string
	httpClient *http.Client
}

func NewHIP2(timeout time.Duration) *HIP2 {
	return &HIP2{
		urlFormat:  "https://%s/.well-known/wallets/HNS",
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (h *HIP2) Method() string {
	return "hip02"
}

func (h *HIP2) Lookup(ctx context.Context, domain string) (string, bool, error) {
	host := strings.Trim(strings.TrimSpace(domain), ".")
	if host == "" || strings.ContainsAny(host, "/?#@") {
		return "", false, nil
	}

	endpoint := fmt.Sprintf(h.urlFormat, url.PathEscape(host))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("build hip02 request: %w", err)
	}
	response, err := h.httpClient.Do(request)
	if err != nil {
		return "", false, fmt.Errorf("hip02 request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", false, nil
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxHIP2BodyBytes))
	if err != nil {
		return "", false, fmt.Errorf("read hip02 body: %w", err)
	}
	candidate := strings.TrimSpace(string(body))
	if !plausibleAddress(candidate) {
		return "", false, nil
	}
	return candidate, true, nil
}

package authority

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bcrosbie/namecache/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL+"/", time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientResolveFound(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"example"}`))
	})

	name, found, err := client.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found || name != "example" {
		t.Fatalf("expected example, got %q found=%v", name, found)
	}
	if gotPath != "/api/v1/namehash/abc123" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
}

func TestClientResolveAbsent(t *testing.T) {
	for _, body := range []string{`{"result":null}`, `{}`, `{"result":""}`, `{"result":"  "}`} {
		t.Run(body, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			name, found, err := client.Resolve(context.Background(), "abc123")
			if err != nil {
				t.Fatalf("absent result must not be an error: %v", err)
			}
			if found || name != "" {
				t.Fatalf("expected absent, got %q found=%v", name, found)
			}
		})
	}
}

func TestClientResolveRemoteErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"not found status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
		"wrong result type": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"result":42}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, handler)
			_, found, err := client.Resolve(context.Background(), "abc123")
			if found {
				t.Fatalf("failure must not report found")
			}
			if !domain.IsCode(err, domain.CodeRemoteUnavailable) {
				t.Fatalf("expected remote error, got %v", err)
			}
		})
	}
}

func TestClientResolveUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(url, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, _, err := client.Resolve(context.Background(), "abc123"); !domain.IsCode(err, domain.CodeRemoteUnavailable) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient("hsd.hns.au", time.Second); !domain.IsCode(err, domain.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

type scriptedResolver struct {
	calls   atomic.Int32
	results []error
	name    string
}

func (s *scriptedResolver) Resolve(_ context.Context, _ string) (string, bool, error) {
	call := int(s.calls.Add(1)) - 1
	if call < len(s.results) && s.results[call] != nil {
		return "", false, s.results[call]
	}
	if s.name == "" {
		return "", false, nil
	}
	return s.name, true, nil
}

func TestRetryingRecoversFromRemoteErrors(t *testing.T) {
	next := &scriptedResolver{
		results: []error{domain.RemoteError("flaky", nil), domain.RemoteError("flaky", nil)},
		name:    "site",
	}
	retrying := NewRetrying(next, 3, nil)
	retrying.initialInterval = time.Millisecond

	name, found, err := retrying.Resolve(context.Background(), "h1")
	if err != nil || !found || name != "site" {
		t.Fatalf("expected recovery, got %q found=%v err=%v", name, found, err)
	}
	if next.calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", next.calls.Load())
	}
}

func TestRetryingGivesUpAfterMaxRetries(t *testing.T) {
	failures := make([]error, 10)
	for i := range failures {
		failures[i] = domain.RemoteError("down", nil)
	}
	next := &scriptedResolver{results: failures}
	retrying := NewRetrying(next, 2, nil)
	retrying.initialInterval = time.Millisecond

	_, _, err := retrying.Resolve(context.Background(), "h1")
	if !domain.IsCode(err, domain.CodeRemoteUnavailable) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if next.calls.Load() != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d", next.calls.Load())
	}
}

func TestRetryingDoesNotRetryAbsentOrOtherErrors(t *testing.T) {
	absent := &scriptedResolver{}
	retrying := NewRetrying(absent, 5, nil)
	if _, found, err := retrying.Resolve(context.Background(), "h1"); err != nil || found {
		t.Fatalf("expected absent, got found=%v err=%v", found, err)
	}
	if absent.calls.Load() != 1 {
		t.Fatalf("absent result retried %d times", absent.calls.Load())
	}

	invalid := &scriptedResolver{results: []error{domain.InvalidArgument("bad")}}
	retrying = NewRetrying(invalid, 5, nil)
	if _, _, err := retrying.Resolve(context.Background(), "h1"); !domain.IsCode(err, domain.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument passthrough, got %v", err)
	}
	if invalid.calls.Load() != 1 {
		t.Fatalf("non-remote error retried %d times", invalid.calls.Load())
	}
}

package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bcrosbie/namecache/internal/domain"
	"github.com/bcrosbie/namecache/internal/service"
	"github.com/bcrosbie/namecache/internal/store"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, namehash string) (string, bool, error) {
	if namehash == "broken" {
		return "", false, domain.RemoteError("authority returned status 500", nil)
	}
	name, ok := m[namehash]
	return name, ok, nil
}

func newTestRouter(t *testing.T) (http.Handler, *store.FileStore) {
	t.Helper()
	nameStore := store.NewFileStore(filepath.Join(t.TempDir(), "names.json"))
	if err := nameStore.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	cache := service.NewCacheService(nameStore, mapResolver{"h1": "site"}, nil, nil, service.Options{StoreDriver: "file"})
	return NewRouter(cache, nil), nameStore
}

func do(t *testing.T, handler http.Handler, method, path, body string) (int, string) {
	t.Helper()
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	raw, _ := io.ReadAll(recorder.Result().Body)
	return recorder.Code, strings.TrimSpace(string(raw))
}

func TestNamehashEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	code, body := do(t, router, http.MethodGet, "/api/v1/namehash/h1", "")
	if code != http.StatusOK || body != `{"namehash":"h1","name":"site"}` {
		t.Fatalf("unexpected response %d %s", code, body)
	}

	code, body = do(t, router, http.MethodGet, "/api/v1/namehash/unknown", "")
	if code != http.StatusOK || body != `{"namehash":"unknown","name":"Error"}` {
		t.Fatalf("unexpected miss response %d %s", code, body)
	}

	code, _ = do(t, router, http.MethodGet, "/api/v1/namehash/broken", "")
	if code != http.StatusBadGateway {
		t.Fatalf("expected 502 for authority failure, got %d", code)
	}
}

func TestCovenantBatchEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	code, body := do(t, router, http.MethodPost, "/api/v1/covenant",
		`[{"action":"A","items":["h1"]},{"action":"B","items":["broken"]},{"items":[]}]`)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", code, body)
	}
	var results []struct {
		Covenant json.RawMessage `json:"covenant"`
		Display  string          `json:"display"`
	}
	if err := json.Unmarshal([]byte(body), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{`A <a href="/name/site">site</a>`, "B", "Unknown"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i := range want {
		if results[i].Display != want[i] {
			t.Fatalf("display[%d]=%q, want %q", i, results[i].Display, want[i])
		}
	}
	if string(results[0].Covenant) != `{"action":"A","items":["h1"]}` {
		t.Fatalf("covenant not echoed: %s", results[0].Covenant)
	}
	if !strings.Contains(body, `<a href=`) {
		t.Fatalf("link markup must not be HTML-escaped in JSON: %s", body)
	}
}

func TestCovenantSingleEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	code, body := do(t, router, http.MethodPost, "/api/v1/covenant", `{"action":"CLAIM","items":["h1"]}`)
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if want := `{"success":true,"data":{"action":"CLAIM","items":["h1"]},"display":"CLAIM <a href=\"/name/site\">site</a>"}`; body != want {
		t.Fatalf("body=%s", body)
	}

	code, body = do(t, router, http.MethodPost, "/api/v1/covenant", `{"items":["h1"]}`)
	if code != http.StatusOK || body != `{"success":false,"data":{"items":["h1"]}}` {
		t.Fatalf("unexpected response %d %s", code, body)
	}

	code, _ = do(t, router, http.MethodPost, "/api/v1/covenant", `not json`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, nameStore := newTestRouter(t)
	if err := nameStore.UpsertName(context.Background(), domain.NameRecord{Namehash: "x", Name: "y"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	code, body := do(t, router, http.MethodGet, "/api/v1/status", "")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	var status domain.StatusReport
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.NamesCached != 1 || status.Status != "ok" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestHIP02EndpointWithoutRecords(t *testing.T) {
	router, _ := newTestRouter(t)
	code, body := do(t, router, http.MethodGet, "/api/v1/hip02/example", "")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if body != `{"success":false,"name":"example","error":"No HIP02 or WALLET record found for this domain"}` {
		t.Fatalf("body=%s", body)
	}
}

func TestStatusForStoreError(t *testing.T) {
	code, message := statusFor(domain.StoreError("disk gone", nil))
	if code != http.StatusServiceUnavailable || message != "name store unavailable" {
		t.Fatalf("unexpected mapping %d %q", code, message)
	}
	if code, _ := statusFor(io.EOF); code != http.StatusInternalServerError {
		t.Fatalf("unknown errors must map to 500, got %d", code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	router, _ := newTestRouter(t)
	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	request.Header.Set("X-Request-Id", "req-123")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Header().Get("X-Request-Id") != "req-123" {
		t.Fatalf("request id not propagated")
	}
}

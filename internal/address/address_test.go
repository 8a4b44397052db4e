package address

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
)

type stubLookup struct {
	method  string
	address string
	found   bool
	err     error
	calls   int
}

func (s *stubLookup) Method() string {
	return s.method
}

func (s *stubLookup) Lookup(context.Context, string) (string, bool, error) {
	s.calls++
	return s.address, s.found, s.err
}

func TestChainPrefersFirstFound(t *testing.T) {
	first := &stubLookup{method: "hip02", address: "hs1first", found: true}
	second := &stubLookup{method: "wallet_txt", address: "hs1second", found: true}

	result, found := NewChain(nil, first, second).Resolve(context.Background(), "example")
	if !found || result.Address != "hs1first" || result.Method != "hip02" {
		t.Fatalf("unexpected result %+v found=%v", result, found)
	}
	if second.calls != 0 {
		t.Fatalf("second lookup should not run after a hit")
	}
}

func TestChainFallsThroughErrorsAndMisses(t *testing.T) {
	failing := &stubLookup{method: "hip02", err: errors.New("tls handshake failed")}
	wallet := &stubLookup{method: "wallet_txt", address: "hs1wallet", found: true}

	result, found := NewChain(nil, failing, wallet).Resolve(context.Background(), "example")
	if !found || result.Method != "wallet_txt" {
		t.Fatalf("expected wallet fallback, got %+v found=%v", result, found)
	}

	_, found = NewChain(nil, &stubLookup{method: "hip02"}, &stubLookup{method: "wallet_txt"}).Resolve(context.Background(), "example")
	if found {
		t.Fatalf("expected no result when every lookup misses")
	}
}

func TestHIP2Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/good/"):
			_, _ = w.Write([]byte("  hs1qexampleaddress\n"))
		case strings.HasPrefix(r.URL.Path, "/html/"):
			_, _ = w.Write([]byte("<html><body>not here</body></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	lookup := NewHIP2(time.Second)
	lookup.urlFormat = server.URL + "/%s/.well-known/wallets/HNS"

	address, found, err := lookup.Lookup(context.Background(), "good")
	if err != nil || !found || address != "hs1qexampleaddress" {
		t.Fatalf("expected address, got %q found=%v err=%v", address, found, err)
	}
	if _, found, err := lookup.Lookup(context.Background(), "html"); err != nil || found {
		t.Fatalf("html body must not be an address: found=%v err=%v", found, err)
	}
	if _, found, err := lookup.Lookup(context.Background(), "missing"); err != nil || found {
		t.Fatalf("404 must be absent: found=%v err=%v", found, err)
	}
	if _, found, _ := lookup.Lookup(context.Background(), "evil/path"); found {
		t.Fatalf("domains with path characters must be rejected")
	}
}

func TestParseWalletTXT(t *testing.T) {
	if address, ok := parseWalletTXT("wallet:HNS=hs1qwallet"); !ok || address != "hs1qwallet" {
		t.Fatalf("unexpected parse result %q ok=%v", address, ok)
	}
	for _, record := range []string{"v=spf1 -all", "wallet:BTC=bc1q", "wallet:HNS=", "wallet:HNS=has space"} {
		if _, ok := parseWalletTXT(record); ok {
			t.Fatalf("record %q should not parse", record)
		}
	}
}

func TestWalletFromAnswers(t *testing.T) {
	header := dns.RR_Header{Name: "example.", Rrtype: dns.TypeTXT, Class: dns.ClassINET}
	answers := []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "example.", Rrtype: dns.TypeA, Class: dns.ClassINET}},
		&dns.TXT{Hdr: header, Txt: []string{"v=spf1 -all"}},
		&dns.TXT{Hdr: header, Txt: []string{"wallet:HNS=", "hs1qsplit"}},
	}
	address, found := walletFromAnswers(answers)
	if !found || address != "hs1qsplit" {
		t.Fatalf("expected split TXT to join, got %q found=%v", address, found)
	}
}

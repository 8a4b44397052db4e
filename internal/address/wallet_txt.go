package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const walletTXTPrefix = "wallet:HNS="

// WalletTXT looks for a "wallet:HNS=<address>" TXT record on the domain.
type WalletTXT struct {
	server string
	client *dns.Client
}

func NewWalletTXT(server string, timeout time.Duration) *WalletTXT {
	return &WalletTXT{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (w *WalletTXT) Method() string {
	return "wallet_txt"
}

func (w *WalletTXT) Lookup(ctx context.Context, domain string) (string, bool, error) {
	host := strings.TrimSpace(domain)
	if host == "" {
		return "", false, nil
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return "", false, nil
	}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(host), dns.TypeTXT)
	query.RecursionDesired = true

	response, _, err := w.client.ExchangeContext(ctx, query, w.server)
	if err != nil {
		return "", false, fmt.Errorf("txt query %s: %w", host, err)
	}
	if response.Rcode != dns.RcodeSuccess {
		return "", false, nil
	}
	address, found := walletFromAnswers(response.Answer)
	return address, found, nil
}

func walletFromAnswers(answers []dns.RR) (string, bool) {
	for _, answer := range answers {
		txt, ok := answer.(*dns.TXT)
		if !ok {
			continue
		}
		if address, found := parseWalletTXT(strings.Join(txt.Txt, "")); found {
			return address, true
		}
	}
	return "", false
}

func parseWalletTXT(record string) (string, bool) {
	if !strings.HasPrefix(record, walletTXTPrefix) {
		return "", false
	}
	candidate := strings.TrimSpace(strings.TrimPrefix(record, walletTXTPrefix))
	if !plausibleAddress(candidate) {
		return "", false
	}
	return candidate, true
}

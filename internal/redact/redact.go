// Package redact masks credentials in connection strings before they are
// logged.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

var rules = []struct {
	re    *regexp.Regexp
	label string
}{
	{re: regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`), label: "Bearer [REDACTED]"},
	// libpq keyword form: "host=db user=app password=hunter2"
	{re: regexp.MustCompile(`(?i)\b(password|token|secret|api[_-]?key)\s*=\s*('[^']*'|[^\s&]+)`), label: "$1=[REDACTED]"},
}

// Source returns input with any password or token removed. URL-form inputs
// keep their scheme, host and path.
func Source(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return input
	}
	if parsed, err := url.Parse(input); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "[REDACTED]")
		}
		input = parsed.String()
		input = strings.Replace(input, "%5BREDACTED%5D", "[REDACTED]", 1)
	}
	for _, rule := range rules {
		input = rule.re.ReplaceAllString(input, rule.label)
	}
	return input
}

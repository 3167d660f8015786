package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/rulesengine/pkg/config"
)

// Built-in pattern names.
const (
	PatternEmail       = "email"
	PatternCreditCard  = "credit_card"
	PatternBearerToken = "bearer_token"
	PatternAPIKey      = "api_key"
	PatternPassword    = "password"
)

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Redactor masks sensitive data in log attributes. Attributes whose key
// names a secret are masked whole; other string values are scanned with
// the patterns in order.
type Redactor struct {
	patterns []redactPattern
}

var defaultPatterns = []redactPattern{
	{PatternBearerToken, regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
	{PatternPassword, regexp.MustCompile(`(password|passwd|pwd)[:=]\s*[^\s]+`), "$1: ***"},
	{PatternAPIKey, regexp.MustCompile(`(sk-[a-zA-Z0-9]{8,}|api[-_]?key[-_:=]\s*[a-zA-Z0-9]+)`), "sk-***"},
	{PatternEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "***@***"},
	{PatternCreditCard, regexp.MustCompile(`\b(?:\d[ -]?){12,15}\d\b`), "****-****-****-****"},
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"authorization", "passphrase",
	"credit_card", "card_number", "private_key",
}

// NewRedactor creates a redactor with the built-in patterns followed by
// custom ones. An invalid custom pattern is an error.
func NewRedactor(custom []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{patterns: append([]redactPattern(nil), defaultPatterns...)}
	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = "***"
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: regex, replacement: replacement})
	}
	return r, nil
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr returns a with sensitive values masked. Groups are walked
// recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	if v.Kind() == slog.KindGroup {
		attrs := v.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, maskValue(v))
	}
	if v.Kind() == slog.KindString {
		return slog.String(a.Key, r.RedactString(v.String()))
	}
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// maskValue keeps a four character hint of long string values.
func maskValue(v slog.Value) string {
	if v.Kind() != slog.KindString {
		return "***"
	}
	s := v.String()
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***"
}

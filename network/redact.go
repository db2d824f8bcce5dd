package network

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/bitrise-io/go-utils/v2/log"
)

const redacted = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	// Authorization: Bearer <token>
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`),
	// SAS signatures and other signed query parameters
	regexp.MustCompile(`(?i)([?&](?:sig|signature|token|access_token|code)=)[^&\s"']+`),
	// JSON string fields holding credentials
	regexp.MustCompile(`(?i)("(?:token|accessToken|access_token|uploadToken|clientSecret|client_secret|sasUri|refresh_token)"\s*:\s*")[^"]*`),
}

// Redactor removes credentials from text before it is logged. Besides the
// well-known patterns it replaces every literal secret registered with Add.
type Redactor struct {
	mu      sync.RWMutex
	secrets map[string]struct{}
}

// NewRedactor creates a redactor with no registered secrets.
func NewRedactor() *Redactor {
	return &Redactor{secrets: map[string]struct{}{}}
}

// Add registers literal secrets. Empty values are ignored.
func (r *Redactor) Add(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range secrets {
		if strings.TrimSpace(s) == "" {
			continue
		}
		r.secrets[s] = struct{}{}
	}
}

// Redact returns s with every known secret replaced.
func (r *Redactor) Redact(s string) string {
	r.mu.RLock()
	for secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, redacted)
	}
	r.mu.RUnlock()
	return Redact(s)
}

// RedactURL returns rawURL with signed query parameters removed.
func (r *Redactor) RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return r.Redact(rawURL)
	}
	query := u.Query()
	for key := range query {
		switch strings.ToLower(key) {
		case "sig", "signature", "token", "access_token", "code":
			query.Set(key, redacted)
		}
	}
	u.RawQuery = query.Encode()
	return r.Redact(u.String())
}

// Redact replaces bearer tokens, signed URL parameters and credential fields in s.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, "${1}"+redacted)
	}
	return s
}

// redactingLogger adapts log.Logger to retryablehttp's Logger, which prints request URLs.
type redactingLogger struct {
	logger   log.Logger
	redactor *Redactor
}

func (l *redactingLogger) Printf(format string, v ...interface{}) {
	l.logger.Debugf("%s", l.redactor.Redact(fmt.Sprintf(format, v...)))
}

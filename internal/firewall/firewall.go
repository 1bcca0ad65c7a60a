package firewall

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/secureblog/apiserver/internal/audit"
	"github.com/secureblog/apiserver/types"
)

// Signature is one named attack pattern.
type Signature struct {
	Category string
	Pattern  *regexp.Regexp
}

// DefaultSignatures returns the built-in signature set, evaluated in
// order: SQL-injection keywords and metacharacters, script/iframe
// injection markers including URL-encoded forms, and path-traversal
// sequences.
func DefaultSignatures() []Signature {
	return []Signature{
		{Category: "SQL Injection", Pattern: regexp.MustCompile(`(?i)union|select|insert|drop|alter|;|` + "`" + `|'`)},
		{Category: "XSS", Pattern: regexp.MustCompile(`(?i)<script>|<iframe>|%3Cscript%3E|%3Ciframe%3E`)},
		{Category: "Path Traversal", Pattern: regexp.MustCompile(`(?i)\.\./|\.\.|%2e%2e%2f|%2e%2e/|\.\.%2f`)},
	}
}

// Middleware inspects every inbound request path and query string
// against the signature set before any route-specific logic runs. The
// first match blocks the request with a response labeled with the
// matched category; no match passes the request through untouched.
func Middleware(signatures []Signature, log *audit.Log) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if category, ok := match(signatures, r); ok {
				log.Record(r.Context(), types.AuditEvent{
					Severity: types.SeverityWarning,
					Category: types.AuditAttackSignature,
					IP:       r.RemoteAddr,
					Message:  fmt.Sprintf("Firewall blocked request (%s).", category),
				})

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":    "Request blocked by firewall.",
					"category": category,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func match(signatures []Signature, r *http.Request) (string, bool) {
	// Inspect both the raw and the decoded forms so encoded payloads
	// cannot slip past the raw check and vice versa.
	subjects := []string{r.URL.Path, r.URL.RawQuery}
	if decoded, err := url.QueryUnescape(r.URL.RawQuery); err == nil && decoded != r.URL.RawQuery {
		subjects = append(subjects, decoded)
	}
	if decoded, err := url.PathUnescape(r.URL.Path); err == nil && decoded != r.URL.Path {
		subjects = append(subjects, decoded)
	}

	for _, sig := range signatures {
		for _, subject := range subjects {
			if subject != "" && sig.Pattern.MatchString(subject) {
				return sig.Category, true
			}
		}
	}
	return "", false
}

package httpmiddleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// DefaultContentSecurityPolicy is the CSP sent when SecureConfig leaves it empty.
const DefaultContentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; " +
	"script-src 'self'; img-src 'self' data: https:"

const hstsYear = 365 * 24 * 60 * 60

// SecureConfig configures security response headers.
type SecureConfig struct {
	ContentSecurityPolicy string
	// HSTSSeconds defaults to one year. Negative disables HSTS.
	HSTSSeconds int64
	// Development disables every header, for local HTTP work.
	Development bool
}

// Secure sets CSP, HSTS (with subdomains and preload), frame, sniffing and
// referrer headers on every response.
func Secure(cfg SecureConfig) Middleware {
	csp := cfg.ContentSecurityPolicy
	if csp == "" {
		csp = DefaultContentSecurityPolicy
	}
	sts := cfg.HSTSSeconds
	if sts == 0 {
		sts = hstsYear
	}
	if sts < 0 {
		sts = 0
	}

	s := secure.New(secure.Options{
		ContentSecurityPolicy: csp,
		STSSeconds:            sts,
		STSIncludeSubdomains:  true,
		STSPreload:            true,
		// TLS is usually terminated by the proxy in front of the server.
		ForceSTSHeader:     true,
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
		IsDevelopment:      cfg.Development,
	})
	return func(next http.Handler) http.Handler {
		return s.Handler(next)
	}
}

package gatekeeper

import (
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/Mirvisek/RiseGen/internal/config"
)

var cspDirectives = [][]string{
	{"default-src", "'self'"},
	{"script-src", "'self'", "'unsafe-inline'", "https://www.google.com/recaptcha/", "https://www.gstatic.com/recaptcha/", "https://www.googletagmanager.com", "https://www.google-analytics.com"},
	{"style-src", "'self'", "'unsafe-inline'", "https://fonts.googleapis.com"},
	{"img-src", "'self'", "blob:", "data:", "https:"},
	{"font-src", "'self'", "https://fonts.gstatic.com", "data:"},
	{"connect-src", "'self'", "https://www.google.com/recaptcha/", "https://recaptchaenterprise.googleapis.com", "https://www.google-analytics.com", "https://www.googletagmanager.com"},
	{"frame-src", "'self'", "https://www.google.com/recaptcha/", "https://recaptcha.google.com/"},
	{"object-src", "'none'"},
	{"base-uri", "'self'"},
	{"form-action", "'self'"},
	{"frame-ancestors", "'self'"},
	{"require-trusted-types-for", "'script'"},
}

// ContentSecurityPolicy builds the policy for env. Inline evaluation is only
// allowed in development and insecure requests are only upgraded in
// production.
func ContentSecurityPolicy(env string) string {
	directives := make([]string, 0, len(cspDirectives)+1)

	for _, directive := range cspDirectives {
		parts := slices.Clone(directive)
		if parts[0] == "script-src" && env == config.EnvDevelopment {
			parts = slices.Insert(parts, 3, "'unsafe-eval'")
		}
		directives = append(directives, strings.Join(parts, " "))
	}

	if env == config.EnvProduction {
		directives = append(directives, "upgrade-insecure-requests")
	}

	return strings.Join(directives, "; ") + ";"
}

func SecurityHeaders(env string) http.Header {
	headers := http.Header{}
	headers.Set("Content-Security-Policy", ContentSecurityPolicy(env))
	headers.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
	headers.Set("X-Frame-Options", "SAMEORIGIN")
	headers.Set("X-Content-Type-Options", "nosniff")
	headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	headers.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), browsing-topics=(), payment=()")
	return headers
}

// CanonicalHost resolves the host to redirect to. A missing, loopback or bare
// domain host becomes the configured canonical host.
func (gk *Gatekeeper) CanonicalHost(forwardedHost string, host string) string {
	candidate := forwardedHost
	if candidate == "" {
		candidate = host
	}

	candidate = strings.ToLower(stripPort(strings.TrimSpace(candidate)))

	if candidate == "" || isLoopback(candidate) || slices.Contains(gk.config.BareDomains, candidate) {
		return gk.config.CanonicalHost
	}

	return candidate
}

func stripPort(host string) string {
	if hostname, _, err := net.SplitHostPort(host); err == nil {
		return strings.Trim(hostname, "[]")
	}
	return strings.Trim(host, "[]")
}

func isLoopback(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

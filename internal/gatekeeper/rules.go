package gatekeeper

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Mirvisek/RiseGen/internal/config"
	"github.com/Mirvisek/RiseGen/internal/model"
)

const (
	RuleHTTPSRedirect         = "https-redirect"
	RuleRateLimit             = "rate-limit"
	RuleAuthPageAuthenticated = "auth-page-authenticated"
	RuleAdminUnauthenticated  = "admin-unauthenticated"
	RuleForcePasswordChange   = "force-password-change"
	RuleAdminRole             = "admin-role"
)

const (
	LoginPath          = "/auth/login"
	DashboardPath      = "/admin/dashboard"
	ChangePasswordPath = "/admin/change-password"
	LogoutAPIPath      = "/api/auth/logout"
)

const (
	ClassSensitive = "sensitive"
	ClassGeneral   = "general"
)

var sensitivePrefixes = []string{
	"/api/auth",
	"/api/newsletter",
	"/api/backup",
	"/api/cron/backup",
}

var authScopedPrefixes = []string{
	"/admin",
	"/auth",
	"/api/auth",
}

var adminRoles = []string{
	model.RoleAdmin,
	model.RoleEditor,
	model.RoleSuperAdmin,
}

var TooManyRequestsBody = map[string]string{"error": "Too many requests"}

// Classify returns the quota class of an API path.
func Classify(path string) string {
	if hasAnyPathPrefix(path, sensitivePrefixes...) {
		return ClassSensitive
	}
	return ClassGeneral
}

func isAPIPath(r *Request) bool {
	return hasPathPrefix(r.Path, "/api")
}

func isAuthScoped(r *Request) bool {
	return hasAnyPathPrefix(r.Path, authScopedPrefixes...)
}

func redirect(location string) Decision {
	return Decision{Outcome: Redirect, Status: http.StatusFound, Location: location}
}

func (gk *Gatekeeper) defaultRules(limiter Limiter) []Rule {
	return []Rule{
		{
			Name: RuleHTTPSRedirect,
			Applies: func(r *Request) bool {
				return gk.config.Environment != config.EnvDevelopment && strings.EqualFold(r.ForwardedProto, "http")
			},
			Evaluate: func(r *Request) Decision {
				location := "https://" + gk.CanonicalHost(r.ForwardedHost, r.Host) + r.Path
				if r.RawQuery != "" {
					location += "?" + r.RawQuery
				}
				return Decision{
					Outcome:             Redirect,
					Status:              http.StatusMovedPermanently,
					Location:            location,
					SkipSecurityHeaders: true,
				}
			},
		},
		{
			Name:    RuleRateLimit,
			Applies: isAPIPath,
			Evaluate: func(r *Request) Decision {
				class := Classify(r.Path)
				limit := gk.config.GeneralLimit
				if class == ClassSensitive {
					limit = gk.config.SensitiveLimit
				}

				clientIP := r.ClientIP
				if clientIP == "" {
					clientIP = "unknown"
				}

				result := limiter.Allow(class+":"+clientIP, limit, gk.config.RateLimitWindow)

				headers := http.Header{}
				headers.Set("x-ratelimit-limit", strconv.Itoa(result.Limit))
				headers.Set("x-ratelimit-remaining", strconv.Itoa(result.Remaining))
				headers.Set("x-ratelimit-reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

				if result.Allowed {
					return Decision{Outcome: Continue, Headers: headers}
				}

				return Decision{
					Outcome: Reject,
					Status:  http.StatusTooManyRequests,
					Body:    TooManyRequestsBody,
					Headers: headers,
				}
			},
		},
		{
			Name:    RuleAuthPageAuthenticated,
			Applies: isAuthScoped,
			Evaluate: func(r *Request) Decision {
				if hasPathPrefix(r.Path, "/auth") && r.Session().Authenticated {
					return redirect(DashboardPath)
				}
				return Decision{}
			},
		},
		{
			Name:    RuleAdminUnauthenticated,
			Applies: isAuthScoped,
			Evaluate: func(r *Request) Decision {
				if hasPathPrefix(r.Path, "/admin") && !r.Session().Authenticated {
					return redirect(LoginPath)
				}
				return Decision{}
			},
		},
		{
			// Runs before the role check so an account without roles is
			// still forced through the password change.
			Name:    RuleForcePasswordChange,
			Applies: isAuthScoped,
			Evaluate: func(r *Request) Decision {
				session := r.Session()
				if !session.Authenticated || !session.MustChangePassword {
					return Decision{}
				}
				if r.Path == ChangePasswordPath || r.Path == LogoutAPIPath {
					return Decision{}
				}
				return redirect(ChangePasswordPath)
			},
		},
		{
			Name:    RuleAdminRole,
			Applies: isAuthScoped,
			Evaluate: func(r *Request) Decision {
				if !hasPathPrefix(r.Path, "/admin") || r.Path == ChangePasswordPath {
					return Decision{}
				}
				if !r.Session().HasAnyRole(adminRoles...) {
					return redirect("/")
				}
				return Decision{}
			},
		},
	}
}

package gatekeeper

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Mirvisek/RiseGen/internal/model"
	"github.com/Mirvisek/RiseGen/internal/services"
)

type Outcome int

const (
	Continue Outcome = iota
	Allow
	Redirect
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Reject:
		return "reject"
	}
	return "unknown"
}

type Decision struct {
	Outcome  Outcome
	Rule     string
	Status   int
	Location string
	Body     any
	// Headers are set on the response whatever the outcome.
	Headers http.Header
	// SkipSecurityHeaders is set for the protocol redirect only.
	SkipSecurityHeaders bool
}

type SessionLoader func() (model.Session, error)

// Request is the part of an inbound request the rules look at. The session is
// loaded at most once and only when a rule asks for it.
type Request struct {
	Path           string
	RawQuery       string
	Host           string
	ForwardedProto string
	ForwardedHost  string
	ClientIP       string

	loader  SessionLoader
	once    sync.Once
	session model.Session
	loaded  bool
}

func NewRequest(r *http.Request, clientIP string, loader SessionLoader) *Request {
	return &Request{
		Path:           r.URL.Path,
		RawQuery:       r.URL.RawQuery,
		Host:           r.Host,
		ForwardedProto: firstValue(r.Header.Get("X-Forwarded-Proto")),
		ForwardedHost:  firstValue(r.Header.Get("X-Forwarded-Host")),
		ClientIP:       clientIP,
		loader:         loader,
	}
}

// Session returns the caller's session. A missing loader or a failed lookup
// is an unauthenticated session.
func (r *Request) Session() model.Session {
	r.once.Do(func() {
		r.loaded = true
		if r.loader == nil {
			return
		}
		session, err := r.loader()
		if err != nil {
			return
		}
		r.session = session
	})
	return r.session
}

func (r *Request) SessionLoaded() bool {
	return r.loaded
}

type Rule struct {
	Name     string
	Applies  func(r *Request) bool
	Evaluate func(r *Request) Decision
}

type Limiter interface {
	Allow(key string, limit int, window time.Duration) services.RateLimitResult
}

type Config struct {
	Environment     string
	CanonicalHost   string
	BareDomains     []string
	RateLimitWindow time.Duration
	SensitiveLimit  int
	GeneralLimit    int
}

type Gatekeeper struct {
	config          Config
	rules           []Rule
	securityHeaders http.Header
}

func New(config Config, limiter Limiter) *Gatekeeper {
	gk := &Gatekeeper{
		config:          config,
		securityHeaders: SecurityHeaders(config.Environment),
	}
	gk.rules = gk.defaultRules(limiter)
	return gk
}

func (gk *Gatekeeper) Rules() []Rule {
	return gk.rules
}

func (gk *Gatekeeper) SecurityHeaders() http.Header {
	return gk.securityHeaders
}

// Decide walks the rules in order. The first rule that does not return
// Continue decides, otherwise the request is allowed.
func (gk *Gatekeeper) Decide(r *Request) Decision {
	headers := http.Header{}

	for _, rule := range gk.rules {
		if rule.Applies != nil && !rule.Applies(r) {
			continue
		}

		decision := rule.Evaluate(r)

		for key, values := range decision.Headers {
			headers[key] = values
		}

		if decision.Outcome == Continue {
			continue
		}

		decision.Rule = rule.Name
		decision.Headers = headers
		return decision
	}

	return Decision{Outcome: Allow, Rule: "allow", Headers: headers}
}

var skippedPrefixes = []string{
	"/static",
	"/assets",
	"/api/admin",
	"/api/upload",
	"/metrics",
}

var skippedPaths = []string{
	"/favicon.ico",
	"/robots.txt",
}

// Matches reports whether the gatekeeper runs for path at all.
func Matches(path string) bool {
	for _, skipped := range skippedPaths {
		if path == skipped {
			return false
		}
	}
	return !hasAnyPathPrefix(path, skippedPrefixes...)
}

// hasPathPrefix matches whole path segments, /admin matches /admin and
// /admin/x but not /administrator.
func hasPathPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func hasAnyPathPrefix(path string, prefixes ...string) bool {
	for _, prefix := range prefixes {
		if hasPathPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func firstValue(header string) string {
	value, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(value)
}

package services

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

const SessionCookieName = "risegen_session"

var ErrInvalidSession = errors.New("invalid session")

type SessionServiceConfig struct {
	Secret string
	TTL    time.Duration
	Secure bool
}

type sessionClaims struct {
	Email              string   `json:"email"`
	Roles              []string `json:"roles"`
	MustChangePassword bool     `json:"mcp"`
	jwt.RegisteredClaims
}

type SessionService struct {
	config SessionServiceConfig
	now    func() time.Time
}

func NewSessionService(config SessionServiceConfig) *SessionService {
	return &SessionService{
		config: config,
		now:    time.Now,
	}
}

func (ss *SessionService) Issue(user model.User) (string, error) {
	if ss.config.Secret == "" {
		return "", fmt.Errorf("session secret is not configured")
	}

	now := ss.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Email:              user.Email,
		Roles:              user.RoleList(),
		MustChangePassword: user.MustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ss.config.TTL)),
		},
	})

	return token.SignedString([]byte(ss.config.Secret))
}

func (ss *SessionService) Parse(tokenString string) (model.Session, error) {
	if ss.config.Secret == "" || tokenString == "" {
		return model.Session{}, ErrInvalidSession
	}

	var claims sessionClaims

	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(ss.config.Secret), nil
	}, jwt.WithTimeFunc(ss.now))

	if err != nil {
		return model.Session{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)

	if err != nil {
		return model.Session{}, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}

	return model.Session{
		Authenticated:      true,
		UserID:             userID,
		Email:              claims.Email,
		Roles:              claims.Roles,
		MustChangePassword: claims.MustChangePassword,
	}, nil
}

// Lookup reads the session cookie. A missing or invalid cookie yields an
// unauthenticated session together with the reason.
func (ss *SessionService) Lookup(r *http.Request) (model.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)

	if err != nil {
		return model.Session{}, ErrInvalidSession
	}

	return ss.Parse(cookie.Value)
}

func (ss *SessionService) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ss.config.TTL.Seconds()),
		HttpOnly: true,
		Secure:   ss.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (ss *SessionService) ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   ss.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

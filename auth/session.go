package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	// `jwt` library signs and verifies the session cookie.
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/user/blogpress-go/apperror"
)

const sessionIssuer = "blogpress"

// ErrNoSession means the request carries no usable session.
var ErrNoSession = apperror.NewUnauthorizedError("login required", nil)

// SessionClaims is the payload of the session cookie. The registered `jti`
// claim holds the session id known to the SessionRegistry.
type SessionClaims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// SessionManager issues, resolves and ends login sessions. The session is an
// HS256 token in an HttpOnly cookie, signed with the application secret key.
type SessionManager struct {
	secret   []byte
	duration time.Duration
	secure   bool
	registry SessionRegistry
	now      func() time.Time
}

// NewSessionManager creates a SessionManager. A nil registry means stateless sessions.
func NewSessionManager(secretKey string, duration time.Duration, secure bool, registry SessionRegistry) *SessionManager {
	if registry == nil {
		registry = StatelessRegistry{}
	}
	return &SessionManager{
		secret:   []byte(secretKey),
		duration: duration,
		secure:   secure,
		registry: registry,
		now:      time.Now,
	}
}

// Issue starts a session for user and sets the session cookie.
func (m *SessionManager) Issue(ctx context.Context, w http.ResponseWriter, user *User) error {
	sid := uuid.New().String()
	now := m.now()
	expiresAt := now.Add(m.duration)

	if err := m.registry.Register(ctx, sid, user.ID, m.duration); err != nil {
		return apperror.NewInternalError("failed to start session", err)
	}

	claims := &SessionClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sid,
			Issuer:    sessionIssuer,
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return apperror.NewInternalError("failed to sign session", err)
	}

	http.SetCookie(w, m.cookie(SessionCookieName, token, expiresAt))
	return nil
}

// Resolve returns the claims of the request's session. It returns ErrNoSession
// when the cookie is missing, forged, expired or revoked.
func (m *SessionManager) Resolve(r *http.Request) (*SessionClaims, error) {
	claims, err := m.claimsFromCookie(r)
	if err != nil {
		return nil, err
	}

	active, err := m.registry.Active(r.Context(), claims.ID, claims.UserID)
	if err != nil {
		return nil, apperror.NewInternalError("failed to check session", err)
	}
	if !active {
		return nil, ErrNoSession
	}
	return claims, nil
}

// End revokes the request's session, if any, and expires the cookie.
func (m *SessionManager) End(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, m.expiredCookie(SessionCookieName))

	claims, err := m.claimsFromCookie(r)
	if err != nil {
		return nil
	}
	if err := m.registry.Revoke(r.Context(), claims.ID); err != nil {
		return apperror.NewInternalError("failed to end session", err)
	}
	return nil
}

func (m *SessionManager) claimsFromCookie(r *http.Request) (*SessionClaims, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	claims := &SessionClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, apperror.NewUnauthorizedError("invalid session", err)
	}
	if claims.UserID <= 0 || claims.ID == "" {
		return nil, apperror.NewUnauthorizedError("invalid session", errors.New("session claims incomplete"))
	}
	return claims, nil
}

func (m *SessionManager) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return m.secret, nil
}

func (m *SessionManager) cookie(name, value string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(expiresAt.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *SessionManager) expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

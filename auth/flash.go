package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const flashTTL = 5 * time.Minute

type flashClaims struct {
	Messages []string `json:"messages"`
	jwt.RegisteredClaims
}

// AddFlash queues a one-shot notice for the next page that calls PopFlash.
// The notices travel in a signed cookie, so a visitor cannot forge them.
func (m *SessionManager) AddFlash(w http.ResponseWriter, r *http.Request, message string) {
	messages := append(m.readFlash(r), message)
	expiresAt := m.now().Add(flashTTL)

	claims := &flashClaims{
		Messages: messages,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return
	}
	http.SetCookie(w, m.cookie(FlashCookieName, token, expiresAt))
}

// PopFlash returns the pending notices and clears them.
func (m *SessionManager) PopFlash(w http.ResponseWriter, r *http.Request) []string {
	if _, err := r.Cookie(FlashCookieName); err != nil {
		return nil
	}
	http.SetCookie(w, m.expiredCookie(FlashCookieName))
	return m.readFlash(r)
}

func (m *SessionManager) readFlash(r *http.Request) []string {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims := &flashClaims{}
	_, err = jwt.ParseWithClaims(cookie.Value, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil
	}
	return claims.Messages
}

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/user/blogpress-go/apperror"
)

// UserLoader resolves a session's user id to the account.
type UserLoader interface {
	UserByID(ctx context.Context, id int) (*User, error)
}

// LoadSession resolves the session cookie on every request and, when it is
// valid and its user still exists, binds the user to the request context.
// It never rejects a request; protected routes add RequireSession.
func (m *SessionManager) LoadSession(users UserLoader, log logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.Resolve(r)
			if err != nil {
				switch {
				case errors.Is(err, ErrNoSession):
				case apperror.FromError(err).StatusCode() >= http.StatusInternalServerError:
					// The registry is unreachable: every logged-in visitor is treated as anonymous.
					log.WithError(err).Error("failed to resolve session")
				default:
					log.WithError(err).Debug("ignoring unusable session cookie")
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.UserByID(r.Context(), claims.UserID)
			if err != nil {
				if !apperror.IsNotFound(err) {
					log.WithError(err).WithField("user_id", claims.UserID).Error("failed to load session user")
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithUser(r.Context(), user)))
		})
	}
}

// RequireSession lets the request through only when Guard passes; anyone
// else is redirected to the login page and the handler never runs.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := Guard(r.Context()); err != nil {
			status := http.StatusSeeOther
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				status = http.StatusFound
			}
			http.Redirect(w, r, LoginPath, status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

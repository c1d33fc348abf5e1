package app

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/csrf"

	"github.com/user/blogpress-go/auth"
	"github.com/user/blogpress-go/logging"
	"github.com/user/blogpress-go/posts"
	"github.com/user/blogpress-go/views"
)

const (
	csrfFieldName  = "csrf_token"
	csrfCookieName = "blogpress_csrf"
)

// NewRouter builds the HTTP handler for the whole site.
func NewRouter(a *App) http.Handler {
	postHandlers := posts.NewHandlers(a.Posts, a.Views)
	authHandlers := auth.NewHandlers(a.Auth, a.Sessions, a.Views)

	r := chi.NewRouter()

	// Chi requires all middleware to be registered before any routes.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(a.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if origins := a.Config.Server.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Use(limitBody(a.Config.Server.MaxUploadBytes))
	if a.Config.Auth.CSRFEnabled {
		r.Use(csrfProtect(a))
	}
	r.Use(a.Sessions.LoadSession(a.Auth, a.Log))

	r.NotFound(a.Views.NotFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.Views.Render(w, r, http.StatusMethodNotAllowed, views.PageError, views.Page{
			Title: "Method Not Allowed",
			Data:  views.ErrorData{Status: http.StatusMethodNotAllowed, Message: "method not allowed"},
		})
	})

	r.Get("/healthz", healthz(a))
	r.Handle("/static/*", http.StripPrefix("/static/", staticFiles(http.Dir(a.Config.Server.StaticDir))))

	// Public pages.
	r.Get("/", postHandlers.HandleIndex())
	r.Get("/{id}/content", postHandlers.HandleContent())
	r.Get("/signup", authHandlers.HandleSignupForm())
	r.Post("/signup", authHandlers.HandleSignup())
	r.Get("/login", authHandlers.HandleLoginForm())
	r.Post("/login", authHandlers.HandleLogin())

	// Everything below needs a logged-in user.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession)

		r.Post("/logout", authHandlers.HandleLogout())
		r.Get("/admin", postHandlers.HandleAdmin())
		r.Get("/create", postHandlers.HandleCreateForm())
		r.Post("/create", postHandlers.HandleCreate())
		r.Get("/{id}/update", postHandlers.HandleUpdateForm())
		r.Post("/{id}/update", postHandlers.HandleUpdate())
		r.Post("/{id}/delete", postHandlers.HandleDelete())
	})

	return r
}

// limitBody caps request bodies; reads past the limit fail with *http.MaxBytesError.
func limitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// csrfProtect checks a per-session token on every unsafe request. The token
// key is derived from SECRET_KEY so it survives restarts.
func csrfProtect(a *App) func(http.Handler) http.Handler {
	key := sha256.Sum256([]byte(a.Config.Auth.SecretKey))
	protect := csrf.Protect(key[:],
		csrf.Secure(a.Config.Auth.CookieSecure),
		csrf.Path("/"),
		csrf.FieldName(csrfFieldName),
		csrf.CookieName(csrfCookieName),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.Log.WithField("reason", csrf.FailureReason(r)).Warn("CSRF check failed")
			a.Views.Render(w, r, http.StatusForbidden, views.PageError, views.Page{
				Title: "Forbidden",
				Data:  views.ErrorData{Status: http.StatusForbidden, Message: "invalid or missing form token, reload the page and try again"},
			})
		})),
	)

	return func(next http.Handler) http.Handler {
		h := protect(next)
		if a.Config.Auth.CookieSecure {
			return h
		}
		// Without TLS the Referer check would reject every plain HTTP form post.
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

// staticFiles serves files but not directory listings.
func staticFiles(root http.FileSystem) http.Handler {
	fileServer := http.FileServer(root)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func healthz(a *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if a.DB != nil {
			if err := a.DB.Ping(ctx); err != nil {
				a.Log.WithError(err).Error("health check failed")
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
			}
		}
		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"Failed to encode response"}`, http.StatusInternalServerError)
	}
}

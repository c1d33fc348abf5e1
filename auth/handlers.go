package auth

import (
	"net/http"

	"github.com/user/blogpress-go/apperror"
	"github.com/user/blogpress-go/views"
)

// InvalidLoginMessage is the flash shown after any failed login.
const InvalidLoginMessage = "ユーザー名またはパスワードが違います"

// Handlers serves the account pages.
type Handlers struct {
	service  *AuthService
	sessions *SessionManager
	views    *views.Renderer
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *AuthService, sessions *SessionManager, renderer *views.Renderer) *Handlers {
	return &Handlers{service: service, sessions: sessions, views: renderer}
}

// HandleSignupForm renders GET /signup.
func (h *Handlers) HandleSignupForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.views.Render(w, r, http.StatusOK, views.PageSignup, views.Page{Title: "Sign up", Data: credentialsView{}})
	}
}

// HandleSignup handles POST /signup: create the account, then send the user to log in.
// Validation failures and a taken username re-render the form with the reason.
func (h *Handlers) HandleSignup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			h.views.Error(w, r, apperror.NewBadRequestError("invalid form body", err))
			return
		}
		form := SignupForm{
			Username: r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}

		if _, err := h.service.Signup(r.Context(), form); err != nil {
			appErr := apperror.FromError(err)
			if appErr.Type == apperror.ValidationError || appErr.Type == apperror.ConflictError {
				h.views.Render(w, r, appErr.StatusCode(), views.PageSignup, views.Page{
					Title: "Sign up",
					Error: appErr.Message,
					Data:  credentialsView{Username: form.Username},
				})
				return
			}
			h.views.Error(w, r, err)
			return
		}

		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	}
}

// HandleLoginForm renders GET /login with any pending flash notices.
func (h *Handlers) HandleLoginForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.views.Render(w, r, http.StatusOK, views.PageLogin, views.Page{
			Title:   "Log in",
			Flashes: h.sessions.PopFlash(w, r),
			Data:    credentialsView{},
		})
	}
}

// HandleLogin handles POST /login. Success starts a session and goes to /admin;
// any credential failure flashes one uniform message and goes back to /login.
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			h.views.Error(w, r, apperror.NewBadRequestError("invalid form body", err))
			return
		}
		form := LoginForm{
			Username: r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}

		user, err := h.service.Authenticate(r.Context(), form)
		if err != nil {
			if apperror.IsAuthError(err) {
				h.sessions.AddFlash(w, r, InvalidLoginMessage)
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			h.views.Error(w, r, err)
			return
		}

		if err := h.sessions.Issue(r.Context(), w, user); err != nil {
			h.views.Error(w, r, err)
			return
		}
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	}
}

// HandleLogout handles POST /logout.
func (h *Handlers) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.sessions.End(w, r); err != nil {
			h.views.Error(w, r, err)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Package views renders the server-side HTML pages.
// Templates are embedded into the binary; each page is parsed together with
// the shared layout and executed as "layout".
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/csrf"
	"github.com/sirupsen/logrus"

	"github.com/user/blogpress-go/apperror"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names understood by Render.
const (
	PageIndex    = "index.html"
	PageReadMore = "readmore.html"
	PageAdmin    = "admin.html"
	PageCreate   = "create.html"
	PageUpdate   = "update.html"
	PageSignup   = "signup.html"
	PageLogin    = "login.html"
	PageError    = "error.html"
)

var pageNames = []string{PageIndex, PageReadMore, PageAdmin, PageCreate, PageUpdate, PageSignup, PageLogin, PageError}

// CurrentUserFunc reports the username bound to the request, if any.
type CurrentUserFunc func(r *http.Request) (string, bool)

// Page is the data every template receives. Data carries the page specific value.
type Page struct {
	Title     string
	Username  string
	LoggedIn  bool
	CSRFField template.HTML
	Flashes   []string
	Error     string
	Data      any
}

// ErrorData is the Data of the error page.
type ErrorData struct {
	Status  int
	Message string
}

// Renderer executes the page templates.
type Renderer struct {
	pages       map[string]*template.Template
	currentUser CurrentUserFunc
	log         logrus.FieldLogger
}

var funcs = template.FuncMap{
	"datetime": func(t time.Time) string { return t.Format("2006/01/02 15:04") },
	"imgURL": func(name *string) string {
		if name == nil {
			return ""
		}
		return "/static/img/" + url.PathEscape(*name)
	},
}

// New parses all embedded templates. currentUser may be nil.
func New(log logrus.FieldLogger, currentUser CurrentUserFunc) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, apperror.NewConfigError(fmt.Sprintf("failed to parse template %s", name), err)
		}
		pages[name] = tmpl
	}
	if currentUser == nil {
		currentUser = func(*http.Request) (string, bool) { return "", false }
	}
	return &Renderer{pages: pages, currentUser: currentUser, log: log}, nil
}

// Render writes the named page with the given status code.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	tmpl, ok := v.pages[name]
	if !ok {
		v.log.WithField("page", name).Error("unknown template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	page.Username, page.LoggedIn = v.currentUser(r)
	// Empty when the CSRF middleware is not installed.
	page.CSRFField = csrf.TemplateField(r)

	// Render into a buffer so a template failure can still produce a clean 500.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		v.log.WithError(err).WithField("page", name).Error("template execution failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the error page for err. Server-side failures are logged with
// their cause and shown to the visitor as a generic message.
func (v *Renderer) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.FromError(err)
	status := appErr.StatusCode()

	entry := v.log.WithError(err).WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path, "status": status})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	v.Render(w, r, status, PageError, Page{
		Title: http.StatusText(status),
		Data:  ErrorData{Status: status, Message: appErr.PublicMessage()},
	})
}

// NotFound renders the standard 404 page.
func (v *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	v.Error(w, r, apperror.NewNotFoundError("page not found", nil))
}

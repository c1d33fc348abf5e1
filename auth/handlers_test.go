package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/blogpress-go/views"
)

// memUserStore is an in-memory UserStore with the same uniqueness rule as the users table.
type memUserStore struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{nextID: 1, users: map[string]*User{}}
}

func (s *memUserStore) Create(_ context.Context, username, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.users[username]; taken {
		return nil, ErrDuplicateUsername
	}
	user := &User{ID: s.nextID, Username: username, PasswordHash: passwordHash}
	s.nextID++
	s.users[username] = user
	return user, nil
}

func (s *memUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[username]; ok {
		return user, nil
	}
	return nil, ErrUserNotFound
}

func (s *memUserStore) GetByID(_ context.Context, id int) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

type handlerFixture struct {
	store    *memUserStore
	sessions *SessionManager
	handlers *Handlers
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	renderer, err := views.New(log, nil)
	require.NoError(t, err)

	store := newMemUserStore()
	sessions := NewSessionManager("secret", time.Hour, false, nil)
	return &handlerFixture{
		store:    store,
		sessions: sessions,
		handlers: NewHandlers(newTestService(store), sessions, renderer),
	}
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleSignup(t *testing.T) {
	f := newHandlerFixture(t)

	rec := httptest.NewRecorder()
	f.handlers.HandleSignup()(rec, postForm("/signup", url.Values{"username": {"alice"}, "password": {"pw1"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	f.handlers.HandleSignup()(rec, postForm("/signup", url.Values{"username": {"alice"}, "password": {"pw2"}}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "username already exists")
	assert.Len(t, f.store.users, 1, "no second alice")

	rec = httptest.NewRecorder()
	f.handlers.HandleSignup()(rec, postForm("/signup", url.Values{"username": {"bob"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "password is required")
}

func TestHandleLoginFailureFlashesUniformMessage(t *testing.T) {
	f := newHandlerFixture(t)
	_, err := f.handlers.service.Signup(context.Background(), SignupForm{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	attempts := []url.Values{
		{"username": {"alice"}, "password": {"wrong"}},
		{"username": {"nobody"}, "password": {"pw1"}},
	}
	for _, form := range attempts {
		rec := httptest.NewRecorder()
		f.handlers.HandleLogin()(rec, postForm("/login", form))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))

		page := httptest.NewRecorder()
		f.handlers.HandleLoginForm()(page, requestWithCookies(http.MethodGet, "/login", rec))
		assert.Contains(t, page.Body.String(), InvalidLoginMessage)
	}
}

func TestHandleLoginAndLogout(t *testing.T) {
	f := newHandlerFixture(t)
	_, err := f.handlers.service.Signup(context.Background(), SignupForm{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	login := httptest.NewRecorder()
	f.handlers.HandleLogin()(login, postForm("/login", url.Values{"username": {"alice"}, "password": {"pw1"}}))
	assert.Equal(t, http.StatusSeeOther, login.Code)
	assert.Equal(t, "/admin", login.Header().Get("Location"))

	claims, err := f.sessions.Resolve(requestWithCookies(http.MethodGet, "/admin", login))
	require.NoError(t, err)
	assert.Equal(t, 1, claims.UserID)

	logout := httptest.NewRecorder()
	f.handlers.HandleLogout()(logout, requestWithCookies(http.MethodPost, "/logout", login))
	assert.Equal(t, http.StatusSeeOther, logout.Code)
	assert.Equal(t, "/", logout.Header().Get("Location"))
}

func TestMiddlewareGatesAnonymousRequests(t *testing.T) {
	f := newHandlerFixture(t)
	log, _ := test.NewNullLogger()
	user, err := f.handlers.service.Signup(context.Background(), SignupForm{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	reached := false
	protected := f.sessions.LoadSession(f.handlers.service, log)(RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		current, ok := CurrentUser(r.Context())
		require.True(t, ok)
		assert.Equal(t, "alice", current.Username)
	})))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, reached)

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/create", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.False(t, reached)

	login := httptest.NewRecorder()
	require.NoError(t, f.sessions.Issue(context.Background(), login, user))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, requestWithCookies(http.MethodGet, "/admin", login))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}

// unreachableRegistry accepts new sessions but cannot answer lookups, like a Redis outage.
type unreachableRegistry struct {
	StatelessRegistry
}

func (unreachableRegistry) Active(context.Context, string, int) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func TestLoadSessionLogsRegistryFailuresAsErrors(t *testing.T) {
	f := newHandlerFixture(t)
	user, err := f.handlers.service.Signup(context.Background(), SignupForm{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	sessions := NewSessionManager("secret", time.Hour, false, unreachableRegistry{})
	anonymous := false
	handler := sessions.LoadSession(f.handlers.service, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := CurrentUser(r.Context())
		anonymous = !ok
	}))

	login := httptest.NewRecorder()
	require.NoError(t, sessions.Issue(context.Background(), login, user))
	handler.ServeHTTP(httptest.NewRecorder(), requestWithCookies(http.MethodGet, "/admin", login))

	assert.True(t, anonymous)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	// A forged cookie is only worth a debug line.
	hook.Reset()
	forged := httptest.NewRequest(http.MethodGet, "/admin", nil)
	forged.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-token"})
	handler.ServeHTTP(httptest.NewRecorder(), forged)
	assert.Empty(t, hook.AllEntries())
}

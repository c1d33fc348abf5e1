package posts

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/blogpress-go/views"
)

func newTestRouter(t *testing.T) (http.Handler, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	log, _ := test.NewNullLogger()
	renderer, err := views.New(log, nil)
	require.NoError(t, err)

	h := NewHandlers(f.service, renderer)
	r := chi.NewRouter()
	r.Get("/", h.HandleIndex())
	r.Get("/admin", h.HandleAdmin())
	r.Get("/{id}/content", h.HandleContent())
	r.Get("/create", h.HandleCreateForm())
	r.Post("/create", h.HandleCreate())
	r.Get("/{id}/update", h.HandleUpdateForm())
	r.Post("/{id}/update", h.HandleUpdate())
	r.Post("/{id}/delete", h.HandleDelete())
	return r, f
}

// multipartRequest builds a POST with the given text fields and, when
// filename is set, an img part.
func multipartRequest(t *testing.T, target string, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile(imageField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexListsPosts(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No posts yet.")

	rec = serve(router, multipartRequest(t, "/create", map[string]string{"title": "Hello", "body": "World"}, "my cat.png", []byte("png")))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "Hello")
	assert.Contains(t, rec.Body.String(), `src="/static/img/my_cat.png"`)
}

func TestContentNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, target := range []string{"/999/content", "/abc/content", "/0/content"} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestCreateAcceptsURLEncodedForm(t *testing.T) {
	router, f := newTestRouter(t)

	form := url.Values{"title": {"Plain"}, "body": {"no file"}}
	req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := serve(router, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, f.store.posts, 1)
	assert.Nil(t, f.store.posts[1].ImageName)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/1/content", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "no file")
}

func TestCreateRejectsInvalidForm(t *testing.T) {
	router, f := newTestRouter(t)

	rec := serve(router, multipartRequest(t, "/create", map[string]string{"body": "orphan body"}, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title is required")
	assert.Contains(t, rec.Body.String(), "orphan body", "the form keeps what was typed")
	assert.Empty(t, f.store.posts)
}

func TestCreateRejectsOversizedUpload(t *testing.T) {
	router, f := newTestRouter(t)

	req := multipartRequest(t, "/create", map[string]string{"title": "t", "body": "b"}, "big.png", bytes.Repeat([]byte("x"), 4096))
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 512)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "upload exceeds 512 bytes")
	assert.Empty(t, f.store.posts)
}

func TestUpdateFlow(t *testing.T) {
	router, f := newTestRouter(t)

	serve(router, multipartRequest(t, "/create", map[string]string{"title": "Before", "body": "b"}, "cat.png", []byte("cat")))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/1/update", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Before"`)

	rec = serve(router, multipartRequest(t, "/1/update", map[string]string{"title": "After", "body": "b2"}, "", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "After", f.store.posts[1].Title)
	assert.Equal(t, "cat.png", *f.store.posts[1].ImageName)

	rec = serve(router, multipartRequest(t, "/7/update", map[string]string{"title": "x", "body": "y"}, "", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, multipartRequest(t, "/7/update", map[string]string{"title": ""}, "", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "a missing post wins over an invalid form")

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/7/update", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateValidationKeepsStoredImage(t *testing.T) {
	router, f := newTestRouter(t)

	serve(router, multipartRequest(t, "/create", map[string]string{"title": "t", "body": "b"}, "cat.png", []byte("cat")))

	rec := serve(router, multipartRequest(t, "/1/update", map[string]string{"title": "", "body": "edited"}, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title is required")
	assert.Contains(t, rec.Body.String(), `src="/static/img/cat.png"`)
	assert.Contains(t, rec.Body.String(), "edited")
	assert.Equal(t, "t", f.store.posts[1].Title)
}

func TestDeleteFlow(t *testing.T) {
	router, f := newTestRouter(t)

	serve(router, multipartRequest(t, "/create", map[string]string{"title": "t", "body": "b"}, "cat.png", []byte("cat")))
	assert.FileExists(t, filepath.Join(f.uploads.Dir(), "cat.png"))

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/1/delete", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))
	assert.NoFileExists(t, filepath.Join(f.uploads.Dir(), "cat.png"))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/1/content", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/1/delete", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package posts

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/user/blogpress-go/apperror"
	"github.com/user/blogpress-go/views"
)

const (
	// multipartMemory is how much of a multipart body is kept in memory
	// before file parts spill to temporary files.
	multipartMemory = 8 << 20
	imageField      = "img"
	adminPath       = "/admin"
)

// Handlers serves the public and admin post pages.
type Handlers struct {
	service *PostService
	views   *views.Renderer
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *PostService, renderer *views.Renderer) *Handlers {
	return &Handlers{service: service, views: renderer}
}

// HandleIndex renders GET /.
func (h *Handlers) HandleIndex() http.HandlerFunc {
	return h.listPage(views.PageIndex, "Posts")
}

// HandleAdmin renders GET /admin.
func (h *Handlers) HandleAdmin() http.HandlerFunc {
	return h.listPage(views.PageAdmin, "Admin")
}

func (h *Handlers) listPage(page, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.service.List(r.Context())
		if err != nil {
			h.views.Error(w, r, err)
			return
		}
		h.views.Render(w, r, http.StatusOK, page, views.Page{Title: title, Data: posts})
	}
}

// HandleContent renders GET /{id}/content.
func (h *Handlers) HandleContent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := postID(r)
		if err != nil {
			h.views.Error(w, r, err)
			return
		}

		post, err := h.service.Get(r.Context(), id)
		if err != nil {
			h.views.Error(w, r, err)
			return
		}
		h.views.Render(w, r, http.StatusOK, views.PageReadMore, views.Page{Title: post.Title, Data: post})
	}
}

// HandleCreateForm renders GET /create.
func (h *Handlers) HandleCreateForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.views.Render(w, r, http.StatusOK, views.PageCreate, views.Page{Title: "New post", Data: formView{}})
	}
}

// HandleCreate handles POST /create.
func (h *Handlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, image, err := parsePostForm(r)
		if err != nil {
			h.views.Error(w, r, err)
			return
		}

		if _, err := h.service.Create(r.Context(), form, image); err != nil {
			h.formError(w, r, views.PageCreate, "New post", formView{Title: form.Title, Body: form.Body}, err)
			return
		}
		http.Redirect(w, r, adminPath, http.StatusSeeOther)
	}
}

// HandleUpdateForm renders GET /{id}/update prefilled with the stored post.
func (h *Handlers) HandleUpdateForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := postID(r)
		if err != nil {
			h.views.Error(w, r, err)
			return
		}

		post, err := h.service.Get(r.Context(), id)
		if err != nil {
			h.views.Error(w, r, err)
			return
		}
		h.views.Render(w, r, http.StatusOK, views.PageUpdate, views.Page{
			Title: "Edit post",
			Data:  formView{ID: post.ID, Title: post.Title, Body: post.Body, ImageName: post.ImageName},
		})
	}
}

// HandleUpdate handles POST /{id}/update.
func (h *Handlers) HandleUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := postID(r)
		if err != nil {
			h.views.Error(w, r, err)
			return
		}
		form, image, err := parsePostForm(r)
		if err != nil {
			h.views.Error(w, r, err)
			return
		}

		if _, err := h.service.Update(r.Context(), id, form, image); err != nil {
			view := formView{ID: id, Title: form.Title, Body: form.Body}
			// Keep showing the stored image next to the rejected form.
			if !apperror.IsValidationError(err) {
				h.views.Error(w, r, err)
				return
			}
			if post, getErr := h.service.Get(r.Context(), id); getErr == nil {
				view.ImageName = post.ImageName
			}
			h.formError(w, r, views.PageUpdate, "Edit post", view, err)
			return
		}
		http.Redirect(w, r, adminPath, http.StatusSeeOther)
	}
}

// HandleDelete handles POST /{id}/delete.
func (h *Handlers) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := postID(r)
		if err != nil {
			h.views.Error(w, r, err)
			return
		}

		if err := h.service.Delete(r.Context(), id); err != nil {
			h.views.Error(w, r, err)
			return
		}
		http.Redirect(w, r, adminPath, http.StatusSeeOther)
	}
}

// formError re-renders a post form for validation failures and falls back to
// the error page for everything else.
func (h *Handlers) formError(w http.ResponseWriter, r *http.Request, page, title string, data formView, err error) {
	appErr := apperror.FromError(err)
	if appErr.Type != apperror.ValidationError {
		h.views.Error(w, r, err)
		return
	}
	h.views.Render(w, r, appErr.StatusCode(), page, views.Page{Title: title, Error: appErr.Message, Data: data})
}

// postID reads the {id} route parameter. Anything that is not a positive
// integer cannot name a post and is reported as not found.
func postID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperror.NewNotFoundError("post not found", nil)
	}
	return id, nil
}

// parsePostForm reads title, body and the optional img part. Plain
// url-encoded bodies are accepted as a form without a file.
func parsePostForm(r *http.Request) (PostForm, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return PostForm{}, nil, apperror.NewBadRequestError(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), err)
		}
		return PostForm{}, nil, apperror.NewBadRequestError("invalid form body", err)
	}

	form := PostForm{
		Title: r.PostFormValue("title"),
		Body:  r.PostFormValue("body"),
	}

	var image *multipart.FileHeader
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File[imageField]; len(files) > 0 {
			image = files[0]
		}
	}
	return form, image, nil
}

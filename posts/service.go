package posts

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/user/blogpress-go/apperror"
	"github.com/user/blogpress-go/forms"
)

// AssetStore keeps the image files posts refer to. *uploads.Handler implements it.
type AssetStore interface {
	Accept(header *multipart.FileHeader) (*string, error)
	Remove(name string) error
}

// PostService handles business logic for posts.
type PostService struct {
	store  Store
	assets AssetStore
	loc    *time.Location
	now    func() time.Time
}

// NewPostService creates a new PostService. New posts are stamped in loc.
func NewPostService(store Store, assets AssetStore, loc *time.Location) *PostService {
	if loc == nil {
		loc = time.Local
	}
	return &PostService{store: store, assets: assets, loc: loc, now: time.Now}
}

// List returns all posts, most recent first.
func (s *PostService) List(ctx context.Context) ([]Post, error) {
	posts, err := s.store.ListRecent(ctx)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list posts", err)
	}
	return posts, nil
}

func (s *PostService) Get(ctx context.Context, id int64) (*Post, error) {
	post, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "failed to load post")
	}
	return post, nil
}

// Create validates the form, stores the optional image and inserts the post.
func (s *PostService) Create(ctx context.Context, form PostForm, image *multipart.FileHeader) (*Post, error) {
	if err := forms.Validate(form); err != nil {
		return nil, err
	}

	imageName, err := s.assets.Accept(image)
	if err != nil {
		return nil, err
	}

	post, err := s.store.Create(ctx, NewPost{
		Title:     form.Title,
		Body:      form.Body,
		ImageName: imageName,
		CreatedAt: s.now().In(s.loc),
	})
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to create post", err)
	}
	return post, nil
}

// Update overwrites title and body. The image is replaced only when a new
// file is supplied; the previous file stays on disk since other posts may
// share its name.
func (s *PostService) Update(ctx context.Context, id int64, form PostForm, image *multipart.FileHeader) (*Post, error) {
	// A missing post is reported before the form is judged, and nothing is
	// written to the asset directory for it.
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := forms.Validate(form); err != nil {
		return nil, err
	}

	imageName, err := s.assets.Accept(image)
	if err != nil {
		return nil, err
	}

	post, err := s.store.Update(ctx, id, UpdatePost{Title: form.Title, Body: form.Body, ImageName: imageName})
	if err != nil {
		return nil, mapStoreError(err, "failed to update post")
	}
	return post, nil
}

// Delete removes the post's image, if any, and then the post. The two steps
// are not atomic: a failed record delete leaves the post without its file.
func (s *PostService) Delete(ctx context.Context, id int64) error {
	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if post.ImageName != nil {
		if err := s.assets.Remove(*post.ImageName); err != nil {
			return err
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return mapStoreError(err, "failed to delete post")
	}
	return nil
}

func mapStoreError(err error, message string) error {
	if errors.Is(err, ErrNotFound) {
		return apperror.NewNotFoundError("post not found", err)
	}
	return apperror.NewDatabaseError(message, err)
}

// Package posts holds blog entries: the Post entity, its PostgreSQL store,
// the service that ties records to their uploaded images, and the public
// and admin HTML handlers.
package posts

import "time"

// Post is a single blog entry.
type Post struct {
	ID        int64
	Title     string
	Body      string
	CreatedAt time.Time
	// ImageName names a file in the asset directory; nil when the post has no image.
	ImageName *string
}

// NewPost is the input of Store.Create.
type NewPost struct {
	Title     string
	Body      string
	ImageName *string
	CreatedAt time.Time
}

// UpdatePost is the input of Store.Update. A nil ImageName keeps the current image.
type UpdatePost struct {
	Title     string
	Body      string
	ImageName *string
}

// PostForm is the text part of the create and update forms.
type PostForm struct {
	Title string `form:"title" validate:"required,max=100"`
	Body  string `form:"body" validate:"required,max=1000"`
}

// formView is the Data of the create and update pages.
type formView struct {
	ID        int64
	Title     string
	Body      string
	ImageName *string
}

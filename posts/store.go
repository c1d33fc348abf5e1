package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/user/blogpress-go/db"
)

// ErrNotFound is returned by Store methods when no post has the given id.
var ErrNotFound = errors.New("posts: post not found")

// Store persists posts.
type Store interface {
	// ListRecent returns every post, newest created_at first; equal
	// timestamps keep insertion order.
	ListRecent(ctx context.Context) ([]Post, error)
	Get(ctx context.Context, id int64) (*Post, error)
	Create(ctx context.Context, p NewPost) (*Post, error)
	Update(ctx context.Context, id int64, u UpdatePost) (*Post, error)
	Delete(ctx context.Context, id int64) error
}

// PgStore is the PostgreSQL Store. Timestamps are returned in loc.
type PgStore struct {
	db  db.DBTX
	loc *time.Location
}

// NewPgStore creates a Store over the posts table.
func NewPgStore(conn db.DBTX, loc *time.Location) *PgStore {
	if loc == nil {
		loc = time.Local
	}
	return &PgStore{db: conn, loc: loc}
}

const postColumns = `id, title, body, created_at, img_name`

func (s *PgStore) ListRecent(ctx context.Context) ([]Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC, id ASC`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &p.CreatedAt, &p.ImageName); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.CreatedAt = p.CreatedAt.In(s.loc)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (s *PgStore) Get(ctx context.Context, id int64) (*Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return s.scanOne(s.db.QueryRow(ctx, query, id), "get post")
}

func (s *PgStore) Create(ctx context.Context, p NewPost) (*Post, error) {
	query := `INSERT INTO posts (title, body, created_at, img_name)
              VALUES ($1, $2, $3, $4)
              RETURNING ` + postColumns
	return s.scanOne(s.db.QueryRow(ctx, query, p.Title, p.Body, p.CreatedAt, p.ImageName), "insert post")
}

// Update overwrites title and body; img_name only changes when a new name is given.
func (s *PgStore) Update(ctx context.Context, id int64, u UpdatePost) (*Post, error) {
	query := `UPDATE posts
              SET title = $2, body = $3, img_name = COALESCE($4, img_name)
              WHERE id = $1
              RETURNING ` + postColumns
	return s.scanOne(s.db.QueryRow(ctx, query, id, u.Title, u.Body, u.ImageName), "update post")
}

func (s *PgStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) scanOne(row pgx.Row, op string) (*Post, error) {
	var p Post
	if err := row.Scan(&p.ID, &p.Title, &p.Body, &p.CreatedAt, &p.ImageName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.CreatedAt = p.CreatedAt.In(s.loc)
	return &p, nil
}

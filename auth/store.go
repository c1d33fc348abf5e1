package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/blogpress-go/db"
)

// Store level errors. The service maps them to apperror types.
var (
	ErrUserNotFound      = errors.New("auth: user not found")
	ErrDuplicateUsername = errors.New("auth: username already exists")
)

// UserStore is the credential store: it persists users and finds them again.
type UserStore interface {
	// Create inserts a user. A taken username returns ErrDuplicateUsername.
	Create(ctx context.Context, username, passwordHash string) (*User, error)
	// GetByUsername returns ErrUserNotFound when no user has that name.
	GetByUsername(ctx context.Context, username string) (*User, error)
	// GetByID returns ErrUserNotFound when the id is unknown.
	GetByID(ctx context.Context, id int) (*User, error)
}

// PgUserStore is the PostgreSQL UserStore.
type PgUserStore struct {
	db db.DBTX
}

// NewPgUserStore creates a UserStore backed by the users table.
func NewPgUserStore(conn db.DBTX) *PgUserStore {
	return &PgUserStore{db: conn}
}

// Create inserts a user, relying on the users_username_key constraint for uniqueness.
func (s *PgUserStore) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	query := `INSERT INTO users (username, password_hash)
              VALUES ($1, $2)
              RETURNING id`
	user := &User{Username: username, PasswordHash: passwordHash}
	if err := s.db.QueryRow(ctx, query, username, passwordHash).Scan(&user.ID); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("insert user %q: %w", username, err)
	}
	return user, nil
}

// GetByUsername looks a user up by exact username.
func (s *PgUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT id, username, password_hash FROM users WHERE username = $1`
	return s.getOne(ctx, query, username)
}

// GetByID looks a user up by primary key.
func (s *PgUserStore) GetByID(ctx context.Context, id int) (*User, error) {
	query := `SELECT id, username, password_hash FROM users WHERE id = $1`
	return s.getOne(ctx, query, id)
}

func (s *PgUserStore) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := s.db.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

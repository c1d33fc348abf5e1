package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	// Library for password hashing using bcrypt.
	"golang.org/x/crypto/bcrypt"

	"github.com/user/blogpress-go/apperror"
	"github.com/user/blogpress-go/forms"
)

// ErrInvalidCredentials is the single outcome of every failed login, whether
// the username is unknown or the password is wrong.
var ErrInvalidCredentials = apperror.NewAuthError("invalid username or password", nil)

// AuthService signs users up and verifies their passwords.
type AuthService struct {
	users UserStore
	cost  int

	// dummyHash is compared against when the username is unknown so both
	// failure paths spend the same bcrypt time.
	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new AuthService using bcrypt.DefaultCost.
func NewAuthService(users UserStore) *AuthService {
	return NewAuthServiceWithCost(users, bcrypt.DefaultCost)
}

// NewAuthServiceWithCost creates an AuthService hashing with the given bcrypt cost.
func NewAuthServiceWithCost(users UserStore, cost int) *AuthService {
	return &AuthService{users: users, cost: cost}
}

// Signup creates a new user with a salted bcrypt hash of password.
// A taken username is reported as a Conflict error and nothing is written.
func (s *AuthService) Signup(ctx context.Context, form SignupForm) (*User, error) {
	if err := forms.Validate(form); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.cost)
	if err != nil {
		return nil, apperror.NewInternalError("failed to hash password", err)
	}

	user, err := s.users.Create(ctx, form.Username, string(hashedPassword))
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, apperror.NewConflictError("username already exists", err)
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}
	return user, nil
}

// Authenticate returns the user whose password matches. Any mismatch, an
// unknown username, or a missing field yields ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, form LoginForm) (*User, error) {
	if err := forms.Validate(form); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, form.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.unknownUserHash(), []byte(form.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}

	// `bcrypt.CompareHashAndPassword` handles the comparison in constant time.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(form.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UserByID loads the user a session points at.
func (s *AuthService) UserByID(ctx context.Context, id int) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("user %d not found", id), err)
		}
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}
	return user, nil
}

func (s *AuthService) unknownUserHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("blogpress-unknown-user"), s.cost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/blogpress-go/apperror"
)

// mockUserStore is a testify mock of UserStore.
type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	args := m.Called(ctx, username, passwordHash)
	user, _ := args.Get(0).(*User)
	return user, args.Error(1)
}

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*User)
	return user, args.Error(1)
}

func (m *mockUserStore) GetByID(ctx context.Context, id int) (*User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*User)
	return user, args.Error(1)
}

func newTestService(store UserStore) *AuthService {
	return NewAuthServiceWithCost(store, bcrypt.MinCost)
}

func TestSignup_HashesPassword(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)
	ctx := context.Background()

	store.On("Create", ctx, "alice", mock.MatchedBy(func(hash string) bool {
		return hash != "pw1" && bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw1")) == nil
	})).Return(&User{ID: 1, Username: "alice"}, nil).Once()

	user, err := svc.Signup(ctx, SignupForm{Username: "alice", Password: "pw1"})
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	store.AssertExpectations(t)
}

func TestSignup_DuplicateUsernameIsConflict(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)
	ctx := context.Background()

	store.On("Create", ctx, "alice", mock.AnythingOfType("string")).Return(&User{ID: 1, Username: "alice"}, nil).Once()
	store.On("Create", ctx, "alice", mock.AnythingOfType("string")).Return(nil, ErrDuplicateUsername).Once()

	_, err := svc.Signup(ctx, SignupForm{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, SignupForm{Username: "alice", Password: "pw2"})
	require.Error(t, err)
	assert.True(t, apperror.IsConflictError(err))
	store.AssertExpectations(t)
}

func TestSignup_RequiresFields(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)

	_, err := svc.Signup(context.Background(), SignupForm{Username: "", Password: "pw"})
	require.Error(t, err)
	assert.True(t, apperror.IsValidationError(err))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthenticate_Success(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw1"), bcrypt.MinCost)

	store.On("GetByUsername", ctx, "alice").Return(&User{ID: 1, Username: "alice", PasswordHash: string(hash)}, nil).Once()

	user, err := svc.Authenticate(ctx, LoginForm{Username: "alice", Password: "pw1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw1"), bcrypt.MinCost)

	store.On("GetByUsername", ctx, "alice").Return(&User{ID: 1, Username: "alice", PasswordHash: string(hash)}, nil)
	store.On("GetByUsername", ctx, "mallory").Return(nil, ErrUserNotFound)

	_, wrongPassword := svc.Authenticate(ctx, LoginForm{Username: "alice", Password: "nope"})
	_, unknownUser := svc.Authenticate(ctx, LoginForm{Username: "mallory", Password: "pw1"})
	_, emptyPassword := svc.Authenticate(ctx, LoginForm{Username: "alice", Password: ""})

	require.Error(t, wrongPassword)
	assert.Equal(t, wrongPassword, unknownUser)
	assert.Equal(t, wrongPassword, emptyPassword)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.True(t, apperror.IsAuthError(unknownUser))
}

func TestAuthenticate_StoreFailureIsNotAnAuthFailure(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)
	ctx := context.Background()

	store.On("GetByUsername", ctx, "alice").Return(nil, errors.New("db down"))

	_, err := svc.Authenticate(ctx, LoginForm{Username: "alice", Password: "pw1"})
	require.Error(t, err)
	assert.False(t, apperror.IsAuthError(err))
	assert.Equal(t, apperror.DatabaseError, apperror.FromError(err).Type)
}

func TestUserByID(t *testing.T) {
	store := new(mockUserStore)
	svc := newTestService(store)
	ctx := context.Background()

	store.On("GetByID", ctx, 1).Return(&User{ID: 1, Username: "alice"}, nil)
	store.On("GetByID", ctx, 2).Return(nil, ErrUserNotFound)

	user, err := svc.UserByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.UserByID(ctx, 2)
	assert.True(t, apperror.IsNotFound(err))
}

package accounts

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/auth"
	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/logger"
	"github.com/Domenick1991/skybooking/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	args := m.Called(ctx, email, exceptID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *MockUserStore) UpdateProfile(ctx context.Context, id int64, profile domain.Profile) (*domain.User, error) {
	args := m.Called(ctx, id, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) UpdateAccount(ctx context.Context, id int64, name, email string, role domain.Role, active bool) (*domain.User, error) {
	args := m.Called(ctx, id, name, email, role, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockUserStore) UpdateAvatar(ctx context.Context, id int64, avatar string) (*domain.User, error) {
	args := m.Called(ctx, id, avatar)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) SetActive(ctx context.Context, id int64, active bool) (*domain.User, error) {
	args := m.Called(ctx, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockTicketCounter struct {
	mock.Mock
}

func (m *MockTicketCounter) CountByUser(ctx context.Context, userID int64) (domain.TicketCounts, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.TicketCounts), args.Error(1)
}

type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) Save(folder string, r io.Reader, allowed map[string]string) (string, error) {
	args := m.Called(folder, r, allowed)
	return args.String(0), args.Error(1)
}

func (m *MockFileStorage) Remove(publicURL string) error {
	args := m.Called(publicURL)
	return args.Error(0)
}

var (
	admin = authz.Actor{UserID: 1, Role: domain.RoleAdmin}
	user  = authz.Actor{UserID: 10, Role: domain.RoleUser}
)

type fixture struct {
	users   *MockUserStore
	tickets *MockTicketCounter
	files   *MockFileStorage
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenManager
	service *AccountService
}

func newFixture() *fixture {
	f := &fixture{
		users:   &MockUserStore{},
		tickets: &MockTicketCounter{},
		files:   &MockFileStorage{},
		hasher:  auth.NewPasswordHasher(bcrypt.MinCost),
		tokens:  auth.NewTokenManager("test-secret", time.Hour),
	}
	f.service = NewAccountService(f.users, f.tickets, f.tokens, f.hasher, f.files, storage.AvatarTypes,
		WithLogger(logger.Discard()))
	return f
}

func (f *fixture) storedUser(t *testing.T, id int64, password string, active bool) *domain.User {
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	return &domain.User{ID: id, Name: "Anna", Email: "anna@example.com", PasswordHash: hash, Role: domain.RoleUser, IsActive: active}
}

func TestAccountService_Register(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.users.On("EmailTaken", ctx, "anna@example.com", int64(0)).Return(false, nil).Once()
	f.users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Role == domain.RoleUser && u.IsActive && u.PasswordHash != "secret"
	})).Run(func(args mock.Arguments) { args.Get(1).(*domain.User).ID = 10 }).Return(nil).Once()

	session, err := f.service.Register(ctx, RegisterInput{Name: " Anna ", Email: " Anna@Example.com ", Password: "secret"})

	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "Anna", session.User.Name)

	claims, err := f.tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(10), claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)
	f.users.AssertExpectations(t)
}

func TestAccountService_Register_Rejects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.Register(ctx, RegisterInput{Name: "A", Email: "not-an-email", Password: "123"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)

	f.users.On("EmailTaken", ctx, "anna@example.com", int64(0)).Return(true, nil).Once()
	_, err = f.service.Register(ctx, RegisterInput{Name: "Anna", Email: "anna@example.com", Password: "1234"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAccountService_Login(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stored := f.storedUser(t, 10, "secret", true)
	inactive := f.storedUser(t, 11, "secret", false)

	f.users.On("GetByEmail", ctx, "anna@example.com").Return(stored, nil)
	f.users.On("GetByEmail", ctx, "old@example.com").Return(inactive, nil)
	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, domain.ErrNotFound)

	session, err := f.service.Login(ctx, LoginInput{Email: "ANNA@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), session.User.ID)

	_, err = f.service.Login(ctx, LoginInput{Email: "anna@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.service.Login(ctx, LoginInput{Email: "old@example.com", Password: "secret"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorContains(t, err, "deactivated")

	_, err = f.service.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "secret"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAccountService_Authenticate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	token, _, err := f.tokens.Issue(10, domain.RoleUser)
	require.NoError(t, err)

	promoted := &domain.User{ID: 10, Role: domain.RoleCompanyManager, IsActive: true}
	f.users.On("GetByID", ctx, int64(10)).Return(promoted, nil).Once()

	actor, err := f.service.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, authz.Actor{UserID: 10, Role: domain.RoleCompanyManager}, actor)

	f.users.On("GetByID", ctx, int64(10)).Return(&domain.User{ID: 10, Role: domain.RoleUser}, nil).Once()
	_, err = f.service.Authenticate(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.service.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAccountService_Profile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	counts := domain.TicketCounts{Total: 3, Paid: 2, Refunded: 1}

	f.users.On("GetByID", ctx, user.UserID).Return(&domain.User{ID: user.UserID}, nil).Once()
	f.tickets.On("CountByUser", ctx, user.UserID).Return(counts, nil).Once()

	view, err := f.service.Profile(ctx, user)

	require.NoError(t, err)
	assert.Equal(t, counts, view.Tickets)
}

func TestAccountService_UpdateProfile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	birth := time.Date(1990, 3, 4, 0, 0, 0, 0, time.UTC)

	f.users.On("EmailTaken", ctx, "anna@example.com", user.UserID).Return(false, nil).Once()
	f.users.On("UpdateProfile", ctx, user.UserID, mock.MatchedBy(func(p domain.Profile) bool {
		return p.BirthDate != nil && p.BirthDate.Equal(birth) && p.Phone == "+7 900"
	})).Return(&domain.User{ID: user.UserID}, nil).Once()

	_, err := f.service.UpdateProfile(ctx, user, ProfileInput{
		Name: "Anna", Email: "anna@example.com", Phone: " +7 900 ", BirthDate: "1990-03-04",
	})
	require.NoError(t, err)

	_, err = f.service.UpdateProfile(ctx, user, ProfileInput{Name: "Anna", Email: "anna@example.com", BirthDate: "04.03.1990"})
	assert.True(t, domain.IsValidation(err))

	_, err = f.service.UpdateProfile(ctx, user, ProfileInput{Name: "Anna", Email: "anna@example.com", Bio: strings.Repeat("x", 1001)})
	assert.True(t, domain.IsValidation(err))

	f.users.AssertExpectations(t)
}

func TestAccountService_ChangePassword(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stored := f.storedUser(t, user.UserID, "old-pass", true)
	f.users.On("GetByID", ctx, user.UserID).Return(stored, nil)
	f.users.On("UpdatePassword", ctx, user.UserID, mock.AnythingOfType("string")).Return(nil).Once()

	err := f.service.ChangePassword(ctx, user, PasswordInput{Current: "wrong", New: "new-pass", Confirm: "new-pass"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "current_password", verr.Fields[0].Field)

	err = f.service.ChangePassword(ctx, user, PasswordInput{Current: "old-pass", New: "new-pass", Confirm: "other"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "confirm_password", verr.Fields[0].Field)

	err = f.service.ChangePassword(ctx, user, PasswordInput{Current: "old-pass", New: "abc", Confirm: "abc"})
	assert.True(t, domain.IsValidation(err))

	require.NoError(t, f.service.ChangePassword(ctx, user, PasswordInput{Current: "old-pass", New: "new-pass", Confirm: "new-pass"}))
	f.users.AssertExpectations(t)
}

func TestAccountService_UpdateAvatar(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	file := strings.NewReader("png-bytes")

	f.users.On("GetByID", ctx, user.UserID).Return(&domain.User{ID: user.UserID, Avatar: "/uploads/avatars/old.png"}, nil).Once()
	f.files.On("Save", "avatars", file, storage.AvatarTypes).Return("/uploads/avatars/new.png", nil).Once()
	f.users.On("UpdateAvatar", ctx, user.UserID, "/uploads/avatars/new.png").
		Return(&domain.User{ID: user.UserID, Avatar: "/uploads/avatars/new.png"}, nil).Once()
	f.files.On("Remove", "/uploads/avatars/old.png").Return(nil).Once()

	updated, err := f.service.UpdateAvatar(ctx, user, file)

	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/new.png", updated.Avatar)
	f.files.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestAccountService_UpdateAvatar_RejectedType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.users.On("GetByID", ctx, user.UserID).Return(&domain.User{ID: user.UserID}, nil).Once()
	f.files.On("Save", "avatars", mock.Anything, storage.AvatarTypes).
		Return("", domain.NewValidationError("file", "type image/gif is not allowed")).Once()

	_, err := f.service.UpdateAvatar(ctx, user, strings.NewReader("GIF89a"))

	assert.True(t, domain.IsValidation(err))
	f.users.AssertNotCalled(t, "UpdateAvatar", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountService_AdminOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.ListUsers(ctx, user)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	_, err = f.service.CreateUser(ctx, user, UserInput{})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	_, err = f.service.ToggleUser(ctx, user, 5)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestAccountService_CreateUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	input := UserInput{Name: "Oleg", Email: "oleg@sky.test", Role: domain.RoleCompanyManager}

	_, err := f.service.CreateUser(ctx, admin, input)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Fields[0].Field)

	input.Password = "12345"
	_, err = f.service.CreateUser(ctx, admin, input)
	assert.True(t, domain.IsValidation(err))

	input.Password = "123456"
	f.users.On("EmailTaken", ctx, "oleg@sky.test", int64(0)).Return(false, nil).Once()
	f.users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Role == domain.RoleCompanyManager && u.IsActive
	})).Return(nil).Once()

	created, err := f.service.CreateUser(ctx, admin, input)
	require.NoError(t, err)
	assert.Equal(t, "Oleg", created.Name)
	f.users.AssertExpectations(t)
}

func TestAccountService_UpdateUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inactive := false

	f.users.On("GetByID", ctx, int64(5)).Return(&domain.User{ID: 5, Role: domain.RoleUser, IsActive: true}, nil).Once()
	f.users.On("EmailTaken", ctx, "five@sky.test", int64(5)).Return(false, nil).Once()
	f.users.On("UpdateAccount", ctx, int64(5), "Five", "five@sky.test", domain.RoleUser, false).
		Return(&domain.User{ID: 5}, nil).Once()
	f.users.On("UpdatePassword", ctx, int64(5), mock.AnythingOfType("string")).Return(nil).Once()

	_, err := f.service.UpdateUser(ctx, admin, 5, UserInput{
		Name: "Five", Email: "five@sky.test", Password: "new-secret", Role: domain.RoleUser, IsActive: &inactive,
	})
	require.NoError(t, err)
	f.users.AssertExpectations(t)
}

func TestAccountService_UpdateUser_CannotDeactivateSelf(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inactive := false

	f.users.On("GetByID", ctx, admin.UserID).Return(&domain.User{ID: admin.UserID, Role: domain.RoleAdmin, IsActive: true}, nil).Once()
	f.users.On("EmailTaken", ctx, "root@sky.test", admin.UserID).Return(false, nil).Once()

	_, err := f.service.UpdateUser(ctx, admin, admin.UserID, UserInput{
		Name: "Root", Email: "root@sky.test", Role: domain.RoleAdmin, IsActive: &inactive,
	})

	assert.True(t, domain.IsValidation(err))
	f.users.AssertNotCalled(t, "UpdateAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountService_ToggleUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.ToggleUser(ctx, admin, admin.UserID)
	assert.True(t, domain.IsValidation(err))

	f.users.On("GetByID", ctx, int64(5)).Return(&domain.User{ID: 5, IsActive: true}, nil).Once()
	f.users.On("SetActive", ctx, int64(5), false).Return(&domain.User{ID: 5, IsActive: false}, nil).Once()

	toggled, err := f.service.ToggleUser(ctx, admin, 5)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	f.users.On("GetByID", ctx, int64(404)).Return(nil, domain.ErrNotFound).Once()
	_, err = f.service.ToggleUser(ctx, admin, 404)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAccountService_PromoteAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	existing := &domain.User{ID: 3, Name: "Root", Email: "root@sky.test", Role: domain.RoleUser, IsActive: true}

	f.users.On("GetByEmail", ctx, "root@sky.test").Return(existing, nil).Once()
	f.users.On("UpdateAccount", ctx, int64(3), "Root", "root@sky.test", domain.RoleAdmin, true).Return(existing, nil).Once()

	require.NoError(t, f.service.PromoteAdmin(ctx, " Root@sky.test "))
	f.users.AssertExpectations(t)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/service/accounts"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAccountUseCase is a mock implementation of accounts.AccountUseCase
type MockAccountUseCase struct {
	mock.Mock
}

func (m *MockAccountUseCase) Register(ctx context.Context, input accounts.RegisterInput) (*accounts.Session, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Session), args.Error(1)
}

func (m *MockAccountUseCase) Login(ctx context.Context, input accounts.LoginInput) (*accounts.Session, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Session), args.Error(1)
}

func (m *MockAccountUseCase) Authenticate(ctx context.Context, token string) (authz.Actor, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(authz.Actor), args.Error(1)
}

func (m *MockAccountUseCase) Profile(ctx context.Context, actor authz.Actor) (*accounts.ProfileView, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.ProfileView), args.Error(1)
}

func (m *MockAccountUseCase) UpdateProfile(ctx context.Context, actor authz.Actor, input accounts.ProfileInput) (*domain.User, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAccountUseCase) ChangePassword(ctx context.Context, actor authz.Actor, input accounts.PasswordInput) error {
	args := m.Called(ctx, actor, input)
	return args.Error(0)
}

func (m *MockAccountUseCase) UpdateAvatar(ctx context.Context, actor authz.Actor, file io.Reader) (*domain.User, error) {
	args := m.Called(ctx, actor, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAccountUseCase) ListUsers(ctx context.Context, actor authz.Actor) ([]domain.User, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *MockAccountUseCase) CreateUser(ctx context.Context, actor authz.Actor, input accounts.UserInput) (*domain.User, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAccountUseCase) UpdateUser(ctx context.Context, actor authz.Actor, id int64, input accounts.UserInput) (*domain.User, error) {
	args := m.Called(ctx, actor, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAccountUseCase) ToggleUser(ctx context.Context, actor authz.Actor, id int64) (*domain.User, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func TestAccountHandler_register(t *testing.T) {
	mockService := &MockAccountUseCase{}
	handler := NewAccountHandler(mockService)

	input := accounts.RegisterInput{Name: "Anna", Email: "anna@example.com", Password: "secret"}
	body, _ := json.Marshal(input)
	c, w := newContext("POST", "/api/auth/register", body, nil)

	session := &accounts.Session{
		Token:     "jwt",
		ExpiresAt: time.Date(2026, 4, 11, 12, 0, 0, 0, time.UTC),
		User:      &domain.User{ID: 10, Name: "Anna", Email: "anna@example.com", Role: domain.RoleUser},
	}
	mockService.On("Register", c.Request.Context(), input).Return(session, nil)

	handler.register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response accounts.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "jwt", response.Token)
	assert.Equal(t, domain.RoleUser, response.User.Role)
}

func TestAccountHandler_register_Conflict(t *testing.T) {
	mockService := &MockAccountUseCase{}
	handler := NewAccountHandler(mockService)

	c, w := newContext("POST", "/api/auth/register", []byte(`{"name":"Anna","email":"anna@example.com","password":"secret"}`), nil)
	mockService.On("Register", c.Request.Context(), mock.Anything).Return(nil, domain.ErrConflict)

	handler.register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAccountHandler_login_BadJSON(t *testing.T) {
	mockService := &MockAccountUseCase{}
	handler := NewAccountHandler(mockService)

	c, w := newContext("POST", "/api/auth/login", []byte(`{"email":`), nil)

	handler.login(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decodeError(t, w).Error)
	mockService.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestAccountHandler_login_Unauthorized(t *testing.T) {
	mockService := &MockAccountUseCase{}
	handler := NewAccountHandler(mockService)

	input := accounts.LoginInput{Email: "anna@example.com", Password: "wrong"}
	body, _ := json.Marshal(input)
	c, w := newContext("POST", "/api/auth/login", body, nil)
	mockService.On("Login", c.Request.Context(), input).Return(nil, domain.ErrUnauthorized)

	handler.login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccountHandler_profile(t *testing.T) {
	mockService := &MockAccountUseCase{}
	handler := NewAccountHandler(mockService)

	c, w := newContext("GET", "/api/profile", nil, &userActor)
	view := &accounts.ProfileView{
		User:    &domain.User{ID: 10, Name: "Anna"},
		Tickets: domain.TicketCounts{Total: 3, Paid: 2, Refunded: 1},
	}
	mockService.On("Profile", c.Request.Context(), userActor).Return(view, nil)

	handler.profile(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paid":2`)
}

func TestAccountHandler_changePassword(t *testing.T) {
	mockService := &MockAccountUseCase{}
	handler := NewAccountHandler(mockService)

	input := accounts.PasswordInput{Current: "old", New: "new-secret", Confirm: "new-secret"}
	body, _ := json.Marshal(input)
	c, w := newContext("POST", "/api/profile/password", body, &userActor)
	mockService.On("ChangePassword", c.Request.Context(), userActor, input).Return(nil)

	handler.changePassword(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestAccountHandler_uploadAvatar(t *testing.T) {
	mockService := &MockAccountUseCase{}
	handler := NewAccountHandler(mockService)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, form.Close())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/profile/avatar", &buf)
	c.Request.Header.Set("Content-Type", form.FormDataContentType())
	c.Set(actorKey, userActor)

	mockService.On("UpdateAvatar", c.Request.Context(), userActor, mock.Anything).
		Return(&domain.User{ID: 10, Avatar: "/uploads/avatars/x.png"}, nil)

	handler.uploadAvatar(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestAccountHandler_uploadAvatar_MissingFile(t *testing.T) {
	mockService := &MockAccountUseCase{}
	handler := NewAccountHandler(mockService)

	c, w := newContext("POST", "/api/profile/avatar", []byte(`{}`), &userActor)

	handler.uploadAvatar(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "UpdateAvatar", mock.Anything, mock.Anything, mock.Anything)
}

package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/auth"
	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/validation"
	"github.com/go-playground/validator/v10"
)

type AccountUseCase interface {
	Register(ctx context.Context, input RegisterInput) (*Session, error)
	Login(ctx context.Context, input LoginInput) (*Session, error)
	Authenticate(ctx context.Context, token string) (authz.Actor, error)

	Profile(ctx context.Context, actor authz.Actor) (*ProfileView, error)
	UpdateProfile(ctx context.Context, actor authz.Actor, input ProfileInput) (*domain.User, error)
	ChangePassword(ctx context.Context, actor authz.Actor, input PasswordInput) error
	UpdateAvatar(ctx context.Context, actor authz.Actor, file io.Reader) (*domain.User, error)

	ListUsers(ctx context.Context, actor authz.Actor) ([]domain.User, error)
	CreateUser(ctx context.Context, actor authz.Actor, input UserInput) (*domain.User, error)
	UpdateUser(ctx context.Context, actor authz.Actor, id int64, input UserInput) (*domain.User, error)
	ToggleUser(ctx context.Context, actor authz.Actor, id int64) (*domain.User, error)
}

type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id int64, profile domain.Profile) (*domain.User, error)
	UpdateAccount(ctx context.Context, id int64, name, email string, role domain.Role, active bool) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateAvatar(ctx context.Context, id int64, avatar string) (*domain.User, error)
	SetActive(ctx context.Context, id int64, active bool) (*domain.User, error)
}

type TicketCounter interface {
	CountByUser(ctx context.Context, userID int64) (domain.TicketCounts, error)
}

type Tokens interface {
	Issue(userID int64, role domain.Role) (string, time.Time, error)
	Parse(token string) (*auth.Claims, error)
}

type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}

type FileStorage interface {
	Save(folder string, r io.Reader, allowed map[string]string) (string, error)
	Remove(publicURL string) error
}

type AccountService struct {
	users    UserStore
	tickets  TicketCounter
	tokens   Tokens
	hasher   Hasher
	files    FileStorage
	avatars  map[string]string
	validate *validator.Validate
	logger   *slog.Logger
}

type AccountServiceOption func(*AccountService)

func WithLogger(l *slog.Logger) AccountServiceOption {
	return func(s *AccountService) {
		s.logger = l
	}
}

func NewAccountService(
	users UserStore,
	tickets TicketCounter,
	tokens Tokens,
	hasher Hasher,
	files FileStorage,
	avatarTypes map[string]string,
	opts ...AccountServiceOption,
) *AccountService {
	s := &AccountService{
		users:    users,
		tickets:  tickets,
		tokens:   tokens,
		hasher:   hasher,
		files:    files,
		avatars:  avatarTypes,
		validate: validation.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "accounts")
	return s
}

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=4,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountService) ensureEmailFree(ctx context.Context, email string, exceptID int64) error {
	taken, err := s.users.EmailTaken(ctx, email, exceptID)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return fmt.Errorf("%w: email is already registered", domain.ErrConflict)
	}
	return nil
}

// Register creates a regular user account and signs it in.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := validation.Struct(s.validate, input); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, input.Email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.session(user)
}

func (s *AccountService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validation.Struct(s.validate, input); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Verify(user.PasswordHash, input.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", domain.ErrUnauthorized)
	}

	return s.session(user)
}

func (s *AccountService) session(user *domain.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// Authenticate resolves a bearer token to the acting user. The role is read
// from the account so role changes and deactivation apply immediately.
func (s *AccountService) Authenticate(ctx context.Context, token string) (authz.Actor, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return authz.Actor{}, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return authz.Actor{}, fmt.Errorf("%w: unknown user", domain.ErrUnauthorized)
	}
	if err != nil {
		return authz.Actor{}, err
	}
	if !user.IsActive {
		return authz.Actor{}, fmt.Errorf("%w: account is deactivated", domain.ErrUnauthorized)
	}
	return authz.Actor{UserID: user.ID, Role: user.Role}, nil
}

type ProfileView struct {
	User    *domain.User        `json:"user"`
	Tickets domain.TicketCounts `json:"tickets"`
}

func (s *AccountService) Profile(ctx context.Context, actor authz.Actor) (*ProfileView, error) {
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	counts, err := s.tickets.CountByUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}
	return &ProfileView{User: user, Tickets: counts}, nil
}

type ProfileInput struct {
	Name           string `json:"name" validate:"required,min=2,max=120"`
	Email          string `json:"email" validate:"required,email,max=255"`
	Phone          string `json:"phone" validate:"max=20"`
	BirthDate      string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	DocumentNumber string `json:"document_number" validate:"max=50"`
	Address        string `json:"address" validate:"max=500"`
	Nationality    string `json:"nationality" validate:"max=50"`
	Bio            string `json:"bio" validate:"max=1000"`
}

func (s *AccountService) UpdateProfile(ctx context.Context, actor authz.Actor, input ProfileInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	input.BirthDate = strings.TrimSpace(input.BirthDate)
	if err := validation.Struct(s.validate, input); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, input.Email, actor.UserID); err != nil {
		return nil, err
	}

	profile := domain.Profile{
		Name:           input.Name,
		Email:          input.Email,
		Phone:          strings.TrimSpace(input.Phone),
		DocumentNumber: strings.TrimSpace(input.DocumentNumber),
		Address:        strings.TrimSpace(input.Address),
		Nationality:    strings.TrimSpace(input.Nationality),
		Bio:            strings.TrimSpace(input.Bio),
	}
	if input.BirthDate != "" {
		day, _ := time.Parse("2006-01-02", input.BirthDate)
		profile.BirthDate = &day
	}
	return s.users.UpdateProfile(ctx, actor.UserID, profile)
}

type PasswordInput struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=4,max=72"`
	Confirm string `json:"confirm_password" validate:"required,eqfield=New"`
}

func (s *AccountService) ChangePassword(ctx context.Context, actor authz.Actor, input PasswordInput) error {
	if err := validation.Struct(s.validate, input); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(user.PasswordHash, input.Current)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewValidationError("current_password", "is incorrect")
	}

	hash, err := s.hasher.Hash(input.New)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, actor.UserID, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", actor.UserID)
	return nil
}

// UpdateAvatar stores a new avatar image and removes the previous one.
func (s *AccountService) UpdateAvatar(ctx context.Context, actor authz.Actor, file io.Reader) (*domain.User, error) {
	current, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	url, err := s.files.Save("avatars", file, s.avatars)
	if err != nil {
		return nil, err
	}

	user, err := s.users.UpdateAvatar(ctx, actor.UserID, url)
	if err != nil {
		_ = s.files.Remove(url)
		return nil, err
	}
	if current.Avatar != "" {
		if err := s.files.Remove(current.Avatar); err != nil {
			s.logger.Warn("failed to remove old avatar", "user_id", actor.UserID, "error", err)
		}
	}
	return user, nil
}

func (s *AccountService) ListUsers(ctx context.Context, actor authz.Actor) ([]domain.User, error) {
	if err := authz.Require(actor, authz.ManageUsers); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// UserInput is an account as edited by an administrator. Password is
// required on create and optional on update.
type UserInput struct {
	Name     string      `json:"name" validate:"required,min=2,max=120"`
	Email    string      `json:"email" validate:"required,email,max=255"`
	Password string      `json:"password" validate:"omitempty,min=6,max=72"`
	Role     domain.Role `json:"role" validate:"required,oneof=user company_manager admin"`
	IsActive *bool       `json:"is_active"`
}

func (s *AccountService) prepareUser(input *UserInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	return validation.Struct(s.validate, *input)
}

func (s *AccountService) CreateUser(ctx context.Context, actor authz.Actor, input UserInput) (*domain.User, error) {
	if err := authz.Require(actor, authz.ManageUsers); err != nil {
		return nil, err
	}
	if err := s.prepareUser(&input); err != nil {
		return nil, err
	}
	if input.Password == "" {
		return nil, domain.NewValidationError("password", "is required")
	}
	if err := s.ensureEmailFree(ctx, input.Email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		IsActive:     input.IsActive == nil || *input.IsActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user created", "user_id", user.ID, "role", user.Role, "by", actor.UserID)
	return user, nil
}

func (s *AccountService) UpdateUser(ctx context.Context, actor authz.Actor, id int64, input UserInput) (*domain.User, error) {
	if err := authz.Require(actor, authz.ManageUsers); err != nil {
		return nil, err
	}
	if err := s.prepareUser(&input); err != nil {
		return nil, err
	}
	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, input.Email, id); err != nil {
		return nil, err
	}

	active := current.IsActive
	if input.IsActive != nil {
		active = *input.IsActive
	}
	if id == actor.UserID && (!active || input.Role != current.Role) {
		return nil, domain.NewValidationError("is_active", "administrators cannot deactivate or demote themselves")
	}

	user, err := s.users.UpdateAccount(ctx, id, input.Name, input.Email, input.Role, active)
	if err != nil {
		return nil, err
	}
	if input.Password != "" {
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, err
		}
		if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
			return nil, err
		}
	}
	s.logger.Info("user updated", "user_id", id, "by", actor.UserID)
	return user, nil
}

// ToggleUser flips the active flag of an account other than the actor's own.
func (s *AccountService) ToggleUser(ctx context.Context, actor authz.Actor, id int64) (*domain.User, error) {
	if err := authz.Require(actor, authz.ManageUsers); err != nil {
		return nil, err
	}
	if id == actor.UserID {
		return nil, domain.NewValidationError("id", "administrators cannot deactivate themselves")
	}
	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err := s.users.SetActive(ctx, id, !current.IsActive)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user toggled", "user_id", id, "active", user.IsActive, "by", actor.UserID)
	return user, nil
}

// PromoteAdmin grants the admin role to an existing account. It is used at
// start-up to bootstrap the first administrator.
func (s *AccountService) PromoteAdmin(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("bootstrap admin %s: %w", email, err)
	}
	if user.Role == domain.RoleAdmin && user.IsActive {
		return nil
	}
	if _, err := s.users.UpdateAccount(ctx, user.ID, user.Name, user.Email, domain.RoleAdmin, true); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin promoted", "user_id", user.ID)
	return nil
}

var _ AccountUseCase = (*AccountService)(nil)

package companies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/validation"
	"github.com/go-playground/validator/v10"
)

type CompanyUseCase interface {
	ListActive(ctx context.Context) ([]domain.Company, error)
	List(ctx context.Context, actor authz.Actor) ([]domain.Company, error)
	Create(ctx context.Context, actor authz.Actor, input CompanyInput) (*domain.Company, error)
	Update(ctx context.Context, actor authz.Actor, id int64, input CompanyInput) (*domain.Company, error)
	Toggle(ctx context.Context, actor authz.Actor, id int64) (*domain.Company, error)
}

type CompanyStore interface {
	List(ctx context.Context) ([]domain.Company, error)
	ListActive(ctx context.Context) ([]domain.Company, error)
	GetByID(ctx context.Context, id int64) (*domain.Company, error)
	GetByManager(ctx context.Context, managerID int64) (*domain.Company, error)
	Create(ctx context.Context, draft domain.CompanyDraft) (*domain.Company, error)
	Update(ctx context.Context, id int64, draft domain.CompanyDraft) (*domain.Company, error)
	SetActive(ctx context.Context, id int64, active bool) (*domain.Company, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type AirlineCache interface {
	GetAirlines(ctx context.Context) ([]domain.Company, error)
	SetAirlines(ctx context.Context, companies []domain.Company) error
	InvalidateAirlines(ctx context.Context) error
	InvalidateFlights(ctx context.Context) error
}

type CompanyService struct {
	repo     CompanyStore
	users    UserLookup
	cache    AirlineCache
	validate *validator.Validate
	logger   *slog.Logger
}

type CompanyServiceOption func(*CompanyService)

func WithCache(cache AirlineCache) CompanyServiceOption {
	return func(s *CompanyService) {
		s.cache = cache
	}
}

func WithLogger(l *slog.Logger) CompanyServiceOption {
	return func(s *CompanyService) {
		s.logger = l
	}
}

func NewCompanyService(repo CompanyStore, users UserLookup, opts ...CompanyServiceOption) *CompanyService {
	s := &CompanyService{
		repo:     repo,
		users:    users,
		validate: validation.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "companies")
	return s
}

// ListActive returns the airlines shown in the public catalog.
func (s *CompanyService) ListActive(ctx context.Context) ([]domain.Company, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetAirlines(ctx); err == nil && cached != nil {
			return cached, nil
		} else if err != nil {
			s.logger.Warn("airline cache read failed", "error", err)
		}
	}

	companies, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetAirlines(ctx, companies); err != nil {
			s.logger.Warn("airline cache write failed", "error", err)
		}
	}
	return companies, nil
}

func (s *CompanyService) List(ctx context.Context, actor authz.Actor) ([]domain.Company, error) {
	if err := authz.Require(actor, authz.ManageCompanies); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

type CompanyInput struct {
	Name      string `json:"name" validate:"required,min=2,max=120"`
	Code      string `json:"code" validate:"required,min=2,max=10,alphanum"`
	ManagerID *int64 `json:"manager_id" validate:"omitempty,gt=0"`
}

func (s *CompanyService) draft(ctx context.Context, companyID int64, input CompanyInput) (domain.CompanyDraft, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	if err := validation.Struct(s.validate, input); err != nil {
		return domain.CompanyDraft{}, err
	}

	if input.ManagerID != nil {
		if err := s.checkManager(ctx, companyID, *input.ManagerID); err != nil {
			return domain.CompanyDraft{}, err
		}
	}
	return domain.CompanyDraft{Name: input.Name, Code: input.Code, ManagerID: input.ManagerID}, nil
}

// checkManager verifies the user may manage companyID: the role must be
// company_manager and the user must not run another company.
func (s *CompanyService) checkManager(ctx context.Context, companyID, managerID int64) error {
	manager, err := s.users.GetByID(ctx, managerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewValidationError("manager_id", "user does not exist")
	}
	if err != nil {
		return err
	}
	if manager.Role != domain.RoleCompanyManager {
		return domain.NewValidationError("manager_id", "user must have the company_manager role")
	}

	managed, err := s.repo.GetByManager(ctx, managerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if managed.ID != companyID {
		return fmt.Errorf("%w: user already manages %s", domain.ErrConflict, managed.Name)
	}
	return nil
}

func (s *CompanyService) Create(ctx context.Context, actor authz.Actor, input CompanyInput) (*domain.Company, error) {
	if err := authz.Require(actor, authz.ManageCompanies); err != nil {
		return nil, err
	}
	d, err := s.draft(ctx, 0, input)
	if err != nil {
		return nil, err
	}
	company, err := s.repo.Create(ctx, d)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.logger.Info("company created", "company_id", company.ID, "code", company.Code)
	return company, nil
}

func (s *CompanyService) Update(ctx context.Context, actor authz.Actor, id int64, input CompanyInput) (*domain.Company, error) {
	if err := authz.Require(actor, authz.ManageCompanies); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	d, err := s.draft(ctx, id, input)
	if err != nil {
		return nil, err
	}
	company, err := s.repo.Update(ctx, id, d)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.logger.Info("company updated", "company_id", id)
	return company, nil
}

func (s *CompanyService) Toggle(ctx context.Context, actor authz.Actor, id int64) (*domain.Company, error) {
	if err := authz.Require(actor, authz.ManageCompanies); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	company, err := s.repo.SetActive(ctx, id, !current.IsActive)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.logger.Info("company toggled", "company_id", id, "active", company.IsActive)
	return company, nil
}

// invalidate drops the airline list and cached searches, which embed the
// airline name.
func (s *CompanyService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAirlines(ctx); err != nil {
		s.logger.Warn("failed to invalidate airline cache", "error", err)
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.logger.Warn("failed to invalidate flight cache", "error", err)
	}
}

var _ CompanyUseCase = (*CompanyService)(nil)

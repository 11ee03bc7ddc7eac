package content

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/skybooking/internal/authz"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/validation"
	"github.com/go-playground/validator/v10"
)

type ContentUseCase interface {
	Landing(ctx context.Context) (*domain.Landing, error)

	ListBanners(ctx context.Context, actor authz.Actor) ([]domain.Banner, error)
	CreateBanner(ctx context.Context, actor authz.Actor, input BannerInput) (*domain.Banner, error)
	UpdateBanner(ctx context.Context, actor authz.Actor, id int64, input BannerInput) (*domain.Banner, error)
	ToggleBanner(ctx context.Context, actor authz.Actor, id int64) (*domain.Banner, error)
	UploadBannerImage(ctx context.Context, actor authz.Actor, id int64, file io.Reader) (*domain.Banner, error)

	ListOffers(ctx context.Context, actor authz.Actor) ([]domain.Offer, error)
	CreateOffer(ctx context.Context, actor authz.Actor, input OfferInput) (*domain.Offer, error)
	UpdateOffer(ctx context.Context, actor authz.Actor, id int64, input OfferInput) (*domain.Offer, error)
	ToggleOffer(ctx context.Context, actor authz.Actor, id int64) (*domain.Offer, error)
}

type ContentStore interface {
	ListBanners(ctx context.Context, activeOnly bool) ([]domain.Banner, error)
	GetBanner(ctx context.Context, id int64) (*domain.Banner, error)
	CreateBanner(ctx context.Context, banner *domain.Banner) error
	UpdateBanner(ctx context.Context, banner *domain.Banner) error
	SetBannerActive(ctx context.Context, id int64, active bool) (*domain.Banner, error)

	ListOffers(ctx context.Context) ([]domain.Offer, error)
	ListValidOffers(ctx context.Context, now time.Time, limit int) ([]domain.Offer, error)
	GetOffer(ctx context.Context, id int64) (*domain.Offer, error)
	CreateOffer(ctx context.Context, offer *domain.Offer) error
	UpdateOffer(ctx context.Context, offer *domain.Offer) error
	SetOfferActive(ctx context.Context, id int64, active bool) (*domain.Offer, error)
}

type UpcomingFlights interface {
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]domain.Flight, error)
}

type Renderer interface {
	Render(source string) (string, error)
}

type FileStorage interface {
	Save(folder string, r io.Reader, allowed map[string]string) (string, error)
	Remove(publicURL string) error
}

const (
	landingOffers  = 3
	landingFlights = 20
)

type ContentService struct {
	repo        ContentStore
	flights     UpcomingFlights
	renderer    Renderer
	files       FileStorage
	bannerTypes map[string]string
	now         func() time.Time
	validate    *validator.Validate
	logger      *slog.Logger
}

type ContentServiceOption func(*ContentService)

func WithClock(now func() time.Time) ContentServiceOption {
	return func(s *ContentService) {
		s.now = now
	}
}

func WithLogger(l *slog.Logger) ContentServiceOption {
	return func(s *ContentService) {
		s.logger = l
	}
}

func NewContentService(
	repo ContentStore,
	flights UpcomingFlights,
	renderer Renderer,
	files FileStorage,
	bannerTypes map[string]string,
	opts ...ContentServiceOption,
) *ContentService {
	s := &ContentService{
		repo:        repo,
		flights:     flights,
		renderer:    renderer,
		files:       files,
		bannerTypes: bannerTypes,
		now:         time.Now,
		validate:    validation.New(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "content")
	return s
}

// Landing collects the home page: active banners in display order, up to
// three currently valid offers and the next flights with free seats.
func (s *ContentService) Landing(ctx context.Context) (*domain.Landing, error) {
	now := s.now().UTC()

	banners, err := s.repo.ListBanners(ctx, true)
	if err != nil {
		return nil, err
	}
	offers, err := s.repo.ListValidOffers(ctx, now, landingOffers)
	if err != nil {
		return nil, err
	}
	flights, err := s.flights.ListUpcoming(ctx, now, landingFlights)
	if err != nil {
		return nil, err
	}

	for i := range banners {
		s.renderBanner(&banners[i])
	}
	for i := range offers {
		s.renderOffer(&offers[i])
	}
	return &domain.Landing{Banners: banners, Offers: offers, Flights: flights}, nil
}

// Rendering failures leave the HTML empty; the raw description is still sent.
func (s *ContentService) renderBanner(b *domain.Banner) {
	html, err := s.renderer.Render(b.Description)
	if err != nil {
		s.logger.Warn("failed to render banner", "banner_id", b.ID, "error", err)
		return
	}
	b.DescriptionHTML = html
}

func (s *ContentService) renderOffer(o *domain.Offer) {
	html, err := s.renderer.Render(o.Description)
	if err != nil {
		s.logger.Warn("failed to render offer", "offer_id", o.ID, "error", err)
		return
	}
	o.DescriptionHTML = html
}

type BannerInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	ImageURL    string `json:"image_url" validate:"max=500"`
	LinkURL     string `json:"link_url" validate:"omitempty,url,max=500"`
	Order       int    `json:"order" validate:"min=0"`
	IsActive    *bool  `json:"is_active"`
}

func (s *ContentService) ListBanners(ctx context.Context, actor authz.Actor) ([]domain.Banner, error) {
	if err := authz.Require(actor, authz.ManageContent); err != nil {
		return nil, err
	}
	banners, err := s.repo.ListBanners(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range banners {
		s.renderBanner(&banners[i])
	}
	return banners, nil
}

func (s *ContentService) applyBanner(b *domain.Banner, input BannerInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.LinkURL = strings.TrimSpace(input.LinkURL)
	if err := validation.Struct(s.validate, input); err != nil {
		return err
	}
	b.Title = input.Title
	b.Description = input.Description
	b.LinkURL = input.LinkURL
	b.Order = input.Order
	if input.ImageURL != "" {
		b.ImageURL = strings.TrimSpace(input.ImageURL)
	}
	if input.IsActive != nil {
		b.IsActive = *input.IsActive
	}
	return nil
}

func (s *ContentService) CreateBanner(ctx context.Context, actor authz.Actor, input BannerInput) (*domain.Banner, error) {
	if err := authz.Require(actor, authz.ManageContent); err != nil {
		return nil, err
	}
	banner := &domain.Banner{IsActive: true}
	if err := s.applyBanner(banner, input); err != nil {
		return nil, err
	}
	if err := s.repo.CreateBanner(ctx, banner); err != nil {
		return nil, err
	}
	s.renderBanner(banner)
	s.logger.Info("banner created", "banner_id", banner.ID)
	return banner, nil
}

func (s *ContentService) UpdateBanner(ctx context.Context, actor authz.Actor, id int64, input BannerInput) (*domain.Banner, error) {
	if err := authz.Require(actor, authz.ManageContent); err != nil {
		return nil, err
	}
	banner, err := s.repo.GetBanner(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyBanner(banner, input); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBanner(ctx, banner); err != nil {
		return nil, err
	}
	s.renderBanner(banner)
	return banner, nil
}

func (s *ContentService) ToggleBanner(ctx context.Context, actor authz.Actor, id int64) (*domain.Banner, error) {
	if err := authz.Require(actor, authz.ManageContent); err != nil {
		return nil, err
	}
	current, err := s.repo.GetBanner(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.SetBannerActive(ctx, id, !current.IsActive)
}

// UploadBannerImage replaces the banner image with an uploaded file.
func (s *ContentService) UploadBannerImage(ctx context.Context, actor authz.Actor, id int64, file io.Reader) (*domain.Banner, error) {
	if err := authz.Require(actor, authz.ManageContent); err != nil {
		return nil, err
	}
	banner, err := s.repo.GetBanner(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.files.Save("banners", file, s.bannerTypes)
	if err != nil {
		return nil, err
	}

	previous := banner.ImageURL
	banner.ImageURL = url
	if err := s.repo.UpdateBanner(ctx, banner); err != nil {
		_ = s.files.Remove(url)
		return nil, err
	}
	if err := s.files.Remove(previous); err != nil {
		s.logger.Warn("failed to remove old banner image", "banner_id", id, "error", err)
	}
	s.renderBanner(banner)
	return banner, nil
}

type OfferInput struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Description     string    `json:"description" validate:"max=5000"`
	DiscountPercent int       `json:"discount_percent" validate:"min=0,max=100"`
	ValidFrom       time.Time `json:"valid_from" validate:"required"`
	ValidTo         time.Time `json:"valid_to" validate:"required"`
	PromoCode       string    `json:"promo_code" validate:"omitempty,max=50,alphanum"`
	IsActive        *bool     `json:"is_active"`
}

func (s *ContentService) applyOffer(o *domain.Offer, input OfferInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.PromoCode = strings.ToUpper(strings.TrimSpace(input.PromoCode))
	if err := validation.Struct(s.validate, input); err != nil {
		return err
	}
	if !input.ValidTo.After(input.ValidFrom) {
		return domain.NewValidationError("valid_to", "must be after valid_from")
	}
	o.Title = input.Title
	o.Description = input.Description
	o.DiscountPercent = input.DiscountPercent
	o.ValidFrom = input.ValidFrom.UTC()
	o.ValidTo = input.ValidTo.UTC()
	o.PromoCode = input.PromoCode
	if input.IsActive != nil {
		o.IsActive = *input.IsActive
	}
	return nil
}

func (s *ContentService) ListOffers(ctx context.Context, actor authz.Actor) ([]domain.Offer, error) {
	if err := authz.Require(actor, authz.ManageContent); err != nil {
		return nil, err
	}
	offers, err := s.repo.ListOffers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		s.renderOffer(&offers[i])
	}
	return offers, nil
}

func (s *ContentService) CreateOffer(ctx context.Context, actor authz.Actor, input OfferInput) (*domain.Offer, error) {
	if err := authz.Require(actor, authz.ManageContent); err != nil {
		return nil, err
	}
	offer := &domain.Offer{IsActive: true}
	if err := s.applyOffer(offer, input); err != nil {
		return nil, err
	}
	if err := s.repo.CreateOffer(ctx, offer); err != nil {
		return nil, err
	}
	s.renderOffer(offer)
	s.logger.Info("offer created", "offer_id", offer.ID)
	return offer, nil
}

func (s *ContentService) UpdateOffer(ctx context.Context, actor authz.Actor, id int64, input OfferInput) (*domain.Offer, error) {
	if err := authz.Require(actor, authz.ManageContent); err != nil {
		return nil, err
	}
	offer, err := s.repo.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyOffer(offer, input); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateOffer(ctx, offer); err != nil {
		return nil, err
	}
	s.renderOffer(offer)
	return offer, nil
}

func (s *ContentService) ToggleOffer(ctx context.Context, actor authz.Actor, id int64) (*domain.Offer, error) {
	if err := authz.Require(actor, authz.ManageContent); err != nil {
		return nil, err
	}
	current, err := s.repo.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.SetOfferActive(ctx, id, !current.IsActive)
}

var _ ContentUseCase = (*ContentService)(nil)

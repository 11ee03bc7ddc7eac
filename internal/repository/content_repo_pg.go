package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContentRepository interface {
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

type PGContentRepository struct {
	db *pgxpool.Pool
}

func NewContentRepository(db *pgxpool.Pool) ContentRepository {
	return &PGContentRepository{db: db}
}

const bannerColumns = `id, title, description, image_url, link_url, is_active, sort_order, created_at`

func scanBanner(row pgx.Row) (*domain.Banner, error) {
	var b domain.Banner
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &b.ImageURL, &b.LinkURL, &b.IsActive, &b.Order, &b.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (r *PGContentRepository) ListBanners(ctx context.Context, activeOnly bool) ([]domain.Banner, error) {
	query := `SELECT ` + bannerColumns + ` FROM banners`
	if activeOnly {
		query += ` WHERE is_active`
	}
	rows, err := conn(ctx, r.db).Query(ctx, query+` ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	banners := make([]domain.Banner, 0)
	for rows.Next() {
		b, err := scanBanner(rows)
		if err != nil {
			return nil, err
		}
		banners = append(banners, *b)
	}
	return banners, rows.Err()
}

func (r *PGContentRepository) GetBanner(ctx context.Context, id int64) (*domain.Banner, error) {
	return scanBanner(conn(ctx, r.db).QueryRow(ctx, `SELECT `+bannerColumns+` FROM banners WHERE id = $1`, id))
}

func (r *PGContentRepository) CreateBanner(ctx context.Context, b *domain.Banner) error {
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO banners (title, description, image_url, link_url, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		b.Title, b.Description, b.ImageURL, b.LinkURL, b.IsActive, b.Order).Scan(&b.ID, &b.CreatedAt)
	return translate(err)
}

func (r *PGContentRepository) UpdateBanner(ctx context.Context, b *domain.Banner) error {
	err := conn(ctx, r.db).QueryRow(ctx, `UPDATE banners SET
			title = $2, description = $3, image_url = $4, link_url = $5, is_active = $6, sort_order = $7
		WHERE id = $1 RETURNING created_at`,
		b.ID, b.Title, b.Description, b.ImageURL, b.LinkURL, b.IsActive, b.Order).Scan(&b.CreatedAt)
	return translate(err)
}

func (r *PGContentRepository) SetBannerActive(ctx context.Context, id int64, active bool) (*domain.Banner, error) {
	return scanBanner(conn(ctx, r.db).QueryRow(ctx, `UPDATE banners SET is_active = $2 WHERE id = $1 RETURNING `+bannerColumns, id, active))
}

const offerColumns = `id, title, description, discount_percent, valid_from, valid_to, COALESCE(promo_code, ''), is_active, created_at`

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var o domain.Offer
	if err := row.Scan(&o.ID, &o.Title, &o.Description, &o.DiscountPercent, &o.ValidFrom, &o.ValidTo, &o.PromoCode, &o.IsActive, &o.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *PGContentRepository) listOffers(ctx context.Context, query string, args ...any) ([]domain.Offer, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := make([]domain.Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

func (r *PGContentRepository) ListOffers(ctx context.Context) ([]domain.Offer, error) {
	return r.listOffers(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY created_at DESC, id DESC`)
}

func (r *PGContentRepository) ListValidOffers(ctx context.Context, now time.Time, limit int) ([]domain.Offer, error) {
	return r.listOffers(ctx, `SELECT `+offerColumns+` FROM offers
		WHERE is_active AND valid_from <= $1 AND valid_to >= $1
		ORDER BY valid_to ASC, id ASC LIMIT $2`, now, limit)
}

func (r *PGContentRepository) GetOffer(ctx context.Context, id int64) (*domain.Offer, error) {
	return scanOffer(conn(ctx, r.db).QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
}

func (r *PGContentRepository) CreateOffer(ctx context.Context, o *domain.Offer) error {
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO offers (title, description, discount_percent, valid_from, valid_to, promo_code, is_active)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7) RETURNING id, created_at`,
		o.Title, o.Description, o.DiscountPercent, o.ValidFrom, o.ValidTo, o.PromoCode, o.IsActive).Scan(&o.ID, &o.CreatedAt)
	return translate(err)
}

func (r *PGContentRepository) UpdateOffer(ctx context.Context, o *domain.Offer) error {
	err := conn(ctx, r.db).QueryRow(ctx, `UPDATE offers SET
			title = $2, description = $3, discount_percent = $4, valid_from = $5, valid_to = $6,
			promo_code = NULLIF($7, ''), is_active = $8
		WHERE id = $1 RETURNING created_at`,
		o.ID, o.Title, o.Description, o.DiscountPercent, o.ValidFrom, o.ValidTo, o.PromoCode, o.IsActive).Scan(&o.CreatedAt)
	return translate(err)
}

func (r *PGContentRepository) SetOfferActive(ctx context.Context, id int64, active bool) (*domain.Offer, error) {
	return scanOffer(conn(ctx, r.db).QueryRow(ctx, `UPDATE offers SET is_active = $2 WHERE id = $1 RETURNING `+offerColumns, id, active))
}

var _ ContentRepository = (*PGContentRepository)(nil)

package domain

import "time"

type Banner struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DescriptionHTML string    `json:"description_html,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	LinkURL         string    `json:"link_url,omitempty"`
	IsActive        bool      `json:"is_active"`
	Order           int       `json:"order"`
	CreatedAt       time.Time `json:"created_at"`
}

// Offer is a promotional message. It is displayed only and never changes
// the price of a ticket.
type Offer struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DescriptionHTML string    `json:"description_html,omitempty"`
	DiscountPercent int       `json:"discount_percent"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	PromoCode       string    `json:"promo_code,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

func (o *Offer) ValidAt(now time.Time) bool {
	return o.IsActive && !now.Before(o.ValidFrom) && !now.After(o.ValidTo)
}

type Landing struct {
	Banners []Banner `json:"banners"`
	Offers  []Offer  `json:"offers"`
	Flights []Flight `json:"flights"`
}

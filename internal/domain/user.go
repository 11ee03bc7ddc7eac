package domain

import "time"

type Role string

const (
	RoleUser           Role = "user"
	RoleCompanyManager Role = "company_manager"
	RoleAdmin          Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCompanyManager, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Role           Role       `json:"role"`
	IsActive       bool       `json:"is_active"`
	Phone          string     `json:"phone,omitempty"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	DocumentNumber string     `json:"document_number,omitempty"`
	Address        string     `json:"address,omitempty"`
	Nationality    string     `json:"nationality,omitempty"`
	Avatar         string     `json:"avatar,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Profile holds the self-editable attributes of a user.
type Profile struct {
	Name           string
	Email          string
	Phone          string
	BirthDate      *time.Time
	DocumentNumber string
	Address        string
	Nationality    string
	Bio            string
}

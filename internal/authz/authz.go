// Package authz maps roles to the actions they may perform.
package authz

import (
	"context"

	"github.com/Domenick1991/skybooking/internal/domain"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int64
	Role   domain.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

type Capability string

const (
	PurchaseTickets Capability = "tickets:purchase"
	ConfirmPayments Capability = "tickets:confirm"
	ManageFlights   Capability = "flights:manage"
	ManageUsers     Capability = "users:manage"
	ManageCompanies Capability = "companies:manage"
	ManageContent   Capability = "content:manage"
	ViewAdminStats  Capability = "stats:admin"
)

var grants = map[domain.Role]map[Capability]bool{
	domain.RoleUser: {
		PurchaseTickets: true,
	},
	domain.RoleCompanyManager: {
		ManageFlights: true,
	},
	domain.RoleAdmin: {
		ConfirmPayments: true,
		ManageUsers:     true,
		ManageCompanies: true,
		ManageContent:   true,
		ViewAdminStats:  true,
	},
}

func Can(a Actor, c Capability) bool {
	return grants[a.Role][c]
}

// Require returns domain.ErrAccessDenied when the actor lacks the capability.
func Require(a Actor, c Capability) error {
	if !Can(a, c) {
		return domain.ErrAccessDenied
	}
	return nil
}

// CanAccessTicket reports whether the actor may act on a ticket owned by ownerID.
func CanAccessTicket(a Actor, ownerID int64) bool {
	return a.UserID == ownerID || a.IsAdmin()
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

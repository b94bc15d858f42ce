// Package session carries the acting operator's identity through the
// API-calling layer. Sessions are explicit values handed to every upstream
// call — there is no ambient, shared login state: two operators (or two roles)
// hitting the gateway concurrently each travel with their own *Session.
package session

import (
	"github.com/google/uuid"
)

// Role is the operator's access level.
type Role string

const (
	RoleReceptionist Role = "receptionist"
	RoleAdmin        Role = "admin"
	RoleSuperadmin   Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleReceptionist, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// Session identifies the operator on whose behalf an upstream call is made.
// It is built by the auth middleware from the request's JWT and passed by
// reference down to the booking-service client, which forwards the acting
// identity to the upstream API.
type Session struct {
	OperatorID uuid.UUID
	Username   string
	Role       Role
	// BranchCode scopes receptionists to one branch; empty = unrestricted.
	BranchCode string
}

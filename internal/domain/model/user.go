package model

import "time"

// Role controls which bot operations a user may start.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// ManagementRoles may run the client/product flows. Deletion of whole clients
// is restricted further (owner/admin), restore to owner only.
var (
	ManagementRoles = []Role{RoleOwner, RoleAdmin, RoleModerator}
	DeletionRoles   = []Role{RoleOwner, RoleAdmin}
	OwnerOnly       = []Role{RoleOwner}
)

// User is a bot operator (reseller staff) or a linked end customer.
// ID is the Telegram user id; WhatsAppID links the same person on WhatsApp.
type User struct {
	ID               int64
	Name             string
	Role             Role
	ClientID         string // set for end users linked to a client record
	WhatsAppID       string
	AuthorizedAt     time.Time
	AuthorizationEnd *time.Time
	UpdatedAt        time.Time
}

// ParseRole validates a role name coming from user input.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleModerator, RoleUser:
		return Role(s), true
	}
	return "", false
}

// HasRole reports whether the user's role is one of allowed.
func (u *User) HasRole(allowed []Role) bool {
	if u == nil {
		return false
	}
	for _, r := range allowed {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsOwner is the unrestricted role; owner scope filters are bypassed for it.
func (u *User) IsOwner() bool { return u != nil && u.Role == RoleOwner }

// OwnerScope returns the owner filter to apply for this user: nil (no filter)
// for owners, otherwise the user's own id.
func (u *User) OwnerScope() *int64 {
	if u.IsOwner() {
		return nil
	}
	id := u.ID
	return &id
}

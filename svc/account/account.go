package account

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrStoreFailed  = errors.New("account store failure")
)

// Role grants optional capabilities.
type Role string

const (
	RolePro   Role = "PRO"
	RoleAdmin Role = "ADMIN"
)

// User is a platform account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	IsGuest   bool      `json:"isGuest"`
	Roles     []Role    `json:"roles,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasRole reports whether the user holds r.
func (u *User) HasRole(r Role) bool {
	return u != nil && slices.Contains(u.Roles, r)
}

// Entitlements answers account-tier questions.
type Entitlements interface {
	IsFullAccount(u *User) bool
	IsPro(u *User) bool
}

// RoleEntitlements derives entitlements from the user record: guests are not
// full accounts, and pro requires the PRO role.
type RoleEntitlements struct{}

func (RoleEntitlements) IsFullAccount(u *User) bool {
	return u != nil && !u.IsGuest
}

func (RoleEntitlements) IsPro(u *User) bool {
	return u.HasRole(RolePro)
}

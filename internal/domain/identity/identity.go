// Package identity defines principals, the ordered role set and sessions.
package identity

import (
	"strings"
	"time"
)

// Role is an ordered enumeration. Higher values rank higher; a role satisfies
// any requirement at or below its own rank.
type Role int

const (
	RoleUser Role = iota
	RolePremium
	RoleModerator
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleUser:      "user",
	RolePremium:   "premium",
	RoleModerator: "moderator",
	RoleAdmin:     "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "user"
}

// AtLeast reports whether r ranks at or above required.
func (r Role) AtLeast(required Role) bool { return r >= required }

// ParseRole maps a stored role name onto the enumeration. Unknown names map
// to the lowest rank.
func ParseRole(name string) Role {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin":
		return RoleAdmin
	case "moderator":
		return RoleModerator
	case "premium":
		return RolePremium
	default:
		return RoleUser
	}
}

// Principal is the authenticated identity attached to a request. Immutable
// once attached.
type Principal struct {
	UserID      string
	Email       string
	Role        Role
	Permissions map[string]struct{}
}

// HasPermission reports whether the principal holds an explicit grant for the
// named resource.
func (p *Principal) HasPermission(resource string) bool {
	if p == nil || p.Permissions == nil {
		return false
	}
	_, ok := p.Permissions[resource]
	return ok
}

// Session is the server-side record behind an opaque token. It lives in the
// cache store under a TTL and is refreshed on activity.
type Session struct {
	Token       string            `json:"-"`
	UserID      string            `json:"user_id"`
	Role        string            `json:"role"`
	Permissions []string          `json:"permissions,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	LastSeenAt  time.Time         `json:"last_seen_at"`
}

// PrincipalFromSession builds the immutable request principal.
func PrincipalFromSession(sess Session) *Principal {
	perms := make(map[string]struct{}, len(sess.Permissions))
	for _, p := range sess.Permissions {
		perms[p] = struct{}{}
	}
	return &Principal{
		UserID:      sess.UserID,
		Role:        ParseRole(sess.Role),
		Permissions: perms,
	}
}

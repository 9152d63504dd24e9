package models

import (
	"time"
)

// Role is the flat role carried by a user profile. Roles are not ranked.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleProvider Role = "provider"
)

// Label returns the display name of the role.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administration"
	case RoleProvider:
		return "Provider"
	}
	return string(r)
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleProvider
}

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleProvider}
}

// DefaultRole is the role given to a freshly created account.
func DefaultRole(isStaff bool) Role {
	if isStaff {
		return RoleAdmin
	}
	return RoleProvider
}

type User struct {
	ID           uint         `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Username     string       `gorm:"size:150;not null;uniqueIndex" json:"username"`
	Email        string       `gorm:"size:254" json:"email"`
	FirstName    string       `gorm:"size:150" json:"first_name"`
	LastName     string       `gorm:"size:150" json:"last_name"`
	PasswordHash string       `gorm:"not null" json:"-"`
	IsStaff      bool         `gorm:"not null;default:false" json:"is_staff"`
	IsActive     bool         `gorm:"not null" json:"is_active"`
	LastLogin    *time.Time   `json:"last_login,omitempty"`
	Profile      *UserProfile `gorm:"constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

// FullName returns "First Last", falling back to the username.
func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

type UserProfile struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	User      *User     `json:"user,omitempty"`
	Role      Role      `gorm:"size:20;not null;default:'provider'" json:"role"`
	Avatar    string    `gorm:"size:255" json:"avatar"`
	Contact   string    `gorm:"size:50" json:"contact"`
	Position  string    `gorm:"size:80" json:"position"`
	Bio       string    `gorm:"type:text" json:"bio"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

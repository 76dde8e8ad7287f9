package model

import "time"

// Material is a catalog item owned by the admin collaborator. The payment
// pipeline only reads it.
type Material struct {
	ID          string
	Title       string
	Description string
	Category    string
	Year        string
	DriveLink   string
	Enabled     bool
	Price       int64 // whole TZS; 0 means unpriced
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RolePremium Role = "premium"
	RoleBasic   Role = "basic"
)

// Identity is an authenticated caller plus its resolved role.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.UserID != "" && i.Role == RoleAdmin }

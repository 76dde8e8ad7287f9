package model

import (
	"strings"
	"time"
)

type AccessCodeStatus string

const (
	AccessCodeAvailable AccessCodeStatus = "available" // pool code, redeemable and allocatable
	AccessCodePending   AccessCodeStatus = "pending"   // control number awaiting admin review
	AccessCodeApproved  AccessCodeStatus = "approved"  // control number approved, redeemable by code entry
	AccessCodeRejected  AccessCodeStatus = "rejected"
)

// AccessCode is a single-use grant bound to exactly one material.
type AccessCode struct {
	ID          string
	Code        string
	MaterialID  string
	Status      AccessCodeStatus
	Used        bool
	UsedAt      *time.Time
	UsedBy      *string // claimant phone or user id
	RequestedBy *string
	RequestedAt *time.Time
	ApprovedBy  *string
	ApprovedAt  *time.Time
	AdminNotes  *string
	CreatedAt   time.Time
}

// Redeemable reports whether direct code entry may consume c.
func (c *AccessCode) Redeemable() bool {
	if c == nil || c.Used {
		return false
	}
	return c.Status == AccessCodeAvailable || c.Status == AccessCodeApproved
}

// NormalizeCode trims whitespace and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

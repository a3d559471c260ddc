package model

import "time"

// Roles a user can hold.
const (
	RoleReader = "READER"
	RoleAdmin  = "ADMIN"
)

// Account states.  DELETED is a soft delete; the row and everything that
// references it stays in place.
const (
	UserActive  = "ACTIVE"
	UserBlocked = "BLOCKED"
	UserDeleted = "DELETED"
)

// User represents an account as stored in the `app_user` table.  The
// structs in this package carry no json tags; handlers project them into
// response DTOs.
type User struct {
	ID            uint64     // app_user.id
	Email         string     // app_user.email (unique, lower-cased)
	PasswordHash  string     // app_user.password_hash
	FirstName     string     // app_user.first_name
	LastName      string     // app_user.last_name
	Role          string     // app_user.role
	Status        string     // app_user.status
	BlockedReason *string    // app_user.blocked_reason (nullable)
	BlockedUntil  *time.Time // app_user.blocked_until (nullable)
	CreatedAt     time.Time  // app_user.created_at
	UpdatedAt     time.Time  // app_user.updated_at
}

// CanSignIn reports whether the account may authenticate at the given time.
// A BLOCKED account whose block has an expiry in the past is allowed again.
func (u User) CanSignIn(now time.Time) bool {
	switch u.Status {
	case UserActive:
		return true
	case UserBlocked:
		return u.BlockedUntil != nil && u.BlockedUntil.Before(now)
	default:
		return false
	}
}

// RefreshToken models an entry in the `refresh_token` table.  The plain
// token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_token.id
	UserID    uint64     // refresh_token.user_id
	TokenHash string     // refresh_token.token_hash
	ExpiresAt time.Time  // refresh_token.expires_at
	RevokedAt *time.Time // refresh_token.revoked_at (nullable)
	CreatedAt time.Time  // refresh_token.created_at
}

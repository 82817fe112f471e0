package model

import "time"

// User represents an account able to log in.  Staff and admins are users
// without a client profile; self-registered guests own exactly one Client.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address, stored lower-case.
//  PasswordHash – bcrypt hashed password (never serialized).
//  FullName     – display name.
//  Role         – admin, staff or client.
//  IsActive     – false once the account is soft deleted.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session models a row of the `sessions` table.  Only the SHA-256 hash of
// the random session id embedded in the token is stored.
type Session struct {
	ID        uint64     // sessions.id
	UserID    uint64     // sessions.user_id
	TokenHash string     // sessions.token_hash
	ExpiresAt time.Time  // sessions.expires_at
	RevokedAt *time.Time // sessions.revoked_at (nullable)
	CreatedAt time.Time  // sessions.created_at
}

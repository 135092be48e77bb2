// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is an account able to author posts.
// A user signs in with a local password, a linked Microsoft identity, or both.
type User struct {
	ID           uuid.UUID // The Global Unique Identifier (GUID) for the user.
	Username     string    // Unique handle, also used for local sign-in.
	PasswordHash *string   // bcrypt hash; nil for federation-only accounts.
	Email        string    // Unique contact email.
	MSID         *string   // Stable Microsoft identity subject (oid); nil until linked.
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can sign in with local credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsFederated reports whether a Microsoft identity is linked to the account.
func (u *User) IsFederated() bool {
	return u.MSID != nil && *u.MSID != ""
}

// Usable reports whether at least one sign-in method is configured.
func (u *User) Usable() bool {
	return u.HasPassword() || u.IsFederated()
}

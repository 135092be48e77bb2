package entity

import "github.com/google/uuid"

// Identity is the acting principal of a request.
type Identity interface {
	ID() uuid.UUID
	IsAuthenticated() bool
}

// AuthenticatedIdentity is the identity carried by a valid session.
type AuthenticatedIdentity struct {
	UserID   uuid.UUID
	Username string
}

// ID returns the user id bound to the session.
func (i AuthenticatedIdentity) ID() uuid.UUID {
	return i.UserID
}

// IsAuthenticated reports whether the session names a user.
func (i AuthenticatedIdentity) IsAuthenticated() bool {
	return i.UserID != uuid.Nil
}

// Anonymous is the identity of a request without a session.
type Anonymous struct{}

// ID returns uuid.Nil.
func (Anonymous) ID() uuid.UUID {
	return uuid.Nil
}

// IsAuthenticated always reports false.
func (Anonymous) IsAuthenticated() bool {
	return false
}

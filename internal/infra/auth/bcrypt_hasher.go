// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"blog/config"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/domain/service"
	"blog/internal/errors"
)

// bcryptMaxPasswordBytes is the longest input bcrypt hashes without truncation.
const bcryptMaxPasswordBytes = 72

// bcryptHasher is a concrete implementation of the PasswordHasher interface using bcrypt.
type bcryptHasher struct {
	cost     int
	strength config.PasswordStrengthConfig
}

// NewBcryptHasher is the constructor for bcryptHasher.
// It returns the implementation as a service.PasswordHasher interface.
func NewBcryptHasher(cfg *config.Config) service.PasswordHasher {
	cost := bcrypt.DefaultCost
	if cfg.Auth != nil && cfg.Auth.BcryptCost >= bcrypt.MinCost && cfg.Auth.BcryptCost <= bcrypt.MaxCost {
		cost = cfg.Auth.BcryptCost
	}

	strength := config.PasswordStrengthConfig{MinLength: 8, MaxLength: bcryptMaxPasswordBytes}
	if cfg.PasswordStrength != nil {
		strength = *cfg.PasswordStrength
	}

	return &bcryptHasher{cost: cost, strength: strength}
}

// Hash generates a salted hash from a plaintext password using bcrypt.
// bcrypt automatically handles salt generation.
func (h *bcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	return string(bytes), nil
}

// Check compares a plaintext password with a bcrypt hash.
func (h *bcryptHasher) Check(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	// err is nil if the password and hash match.
	return err == nil
}

// ValidatePasswordStrength checks the password against the configured policy.
func (h *bcryptHasher) ValidatePasswordStrength(password string) error {
	length := utf8.RuneCountInString(password)
	if h.strength.MinLength > 0 && length < h.strength.MinLength {
		return domainerrors.ErrPasswordStrength.WithDetails("password is too short")
	}

	maxLength := h.strength.MaxLength
	if maxLength <= 0 {
		maxLength = bcryptMaxPasswordBytes
	}
	if length > maxLength || len(password) > bcryptMaxPasswordBytes {
		return domainerrors.ErrPasswordStrength.WithDetails("password is too long")
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	var missing []string
	if h.strength.RequireUppercase && !hasUpper {
		missing = append(missing, "an uppercase letter")
	}
	if h.strength.RequireLowercase && !hasLower {
		missing = append(missing, "a lowercase letter")
	}
	if h.strength.RequireNumbers && !hasNumber {
		missing = append(missing, "a number")
	}
	if h.strength.RequireSpecial && !hasSpecial {
		missing = append(missing, "a special character")
	}
	if len(missing) > 0 {
		return domainerrors.ErrPasswordStrength.WithDetails("password must contain " + strings.Join(missing, ", "))
	}

	return nil
}

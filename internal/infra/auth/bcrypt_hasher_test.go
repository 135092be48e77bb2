package auth

import (
	"strings"
	"testing"

	"blog/config"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(strength *config.PasswordStrengthConfig) *bcryptHasher {
	cfg := &config.Config{
		Auth:             &config.AuthConfig{BcryptCost: bcrypt.MinCost},
		PasswordStrength: strength,
	}

	return NewBcryptHasher(cfg).(*bcryptHasher)
}

func TestBcryptHasher_HashAndCheck(t *testing.T) {
	hasher := newTestHasher(nil)

	password := "StrongPass123!"
	hash, err := hasher.Hash(password)
	require.NoError(t, err)
	assert.NotEqual(t, password, hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.True(t, hasher.Check(password, hash))
	assert.False(t, hasher.Check("WrongPassword123!", hash))
	assert.False(t, hasher.Check("", hash))
	assert.False(t, hasher.Check(password, "invalid_hash"))
}

func TestBcryptHasher_HashIsSalted(t *testing.T) {
	hasher := newTestHasher(nil)

	first, err := hasher.Hash("same-password-1")
	require.NoError(t, err)
	second, err := hasher.Hash("same-password-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestBcryptHasher_InvalidCostFallsBackToDefault(t *testing.T) {
	hasher := NewBcryptHasher(&config.Config{Auth: &config.AuthConfig{BcryptCost: 99}}).(*bcryptHasher)

	assert.Equal(t, bcrypt.DefaultCost, hasher.cost)
}

func TestBcryptHasher_ValidatePasswordStrength(t *testing.T) {
	hasher := newTestHasher(&config.PasswordStrengthConfig{
		MinLength:        10,
		MaxLength:        64,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
		RequireSpecial:   true,
	})

	valid := []string{"StrongPass123!", "MySecure@Pass1", "Complex#Secret9"}
	for _, password := range valid {
		assert.NoError(t, hasher.ValidatePasswordStrength(password), password)
	}

	invalid := []string{
		"Sh0rt!",       // too short
		"PASSWORD123!", // no lowercase
		"password123!", // no uppercase
		"PasswordABC!", // no numbers
		"Password1234", // no special characters
		"Aa1!" + strings.Repeat("x", 70),
	}
	for _, password := range invalid {
		err := hasher.ValidatePasswordStrength(password)
		require.Error(t, err, password)
		assert.True(t, errors.Is(err, domainerrors.ErrPasswordStrength), password)
	}
}

func TestBcryptHasher_DefaultPolicyOnlyChecksLength(t *testing.T) {
	hasher := newTestHasher(nil)

	assert.NoError(t, hasher.ValidatePasswordStrength("lowercaseonly"))
	assert.Error(t, hasher.ValidatePasswordStrength("short"))
}

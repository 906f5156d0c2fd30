package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTer() *JWTer {
	return &JWTer{Secret: []byte("test-secret"), Issuer: "account-api", TTL: 15 * time.Minute}
}

func TestIssueAndParse(t *testing.T) {
	j := newTestJWTer()
	tok, err := j.Issue("u-1", "a@example.com", "ADMIN")
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UID)
	assert.Equal(t, "u-1", c.Subject)
	assert.Equal(t, "a@example.com", c.Email)
	assert.Equal(t, "ADMIN", c.Role)
	assert.Equal(t, "account-api", c.Issuer)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, err := newTestJWTer().Issue("u-1", "a@example.com", "USER")
	require.NoError(t, err)

	other := newTestJWTer()
	other.Secret = []byte("another-secret")
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	tok, err := newTestJWTer().Issue("u-1", "a@example.com", "USER")
	require.NoError(t, err)

	other := newTestJWTer()
	other.Issuer = "someone-else"
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	j := newTestJWTer()
	j.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, err := j.Issue("u-1", "a@example.com", "USER")
	require.NoError(t, err)

	j.now = nil
	_, err = j.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	j := newTestJWTer()
	claims := Claims{UID: "u-1", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    j.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(j.Secret)
	require.NoError(t, err)

	_, err = j.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueRequiresSecret(t *testing.T) {
	j := &JWTer{TTL: time.Minute}
	_, err := j.Issue("u-1", "a@example.com", "USER")
	assert.Error(t, err)
}

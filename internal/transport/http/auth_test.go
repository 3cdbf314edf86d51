package http

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-service/internal/domain"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	auth := NewAuthenticator("s3cret")
	token, err := auth.IssueAdminToken("ops", time.Hour)
	require.NoError(t, err)

	claims, err := auth.ValidateAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestAdminTokenExpires(t *testing.T) {
	auth := NewAuthenticator("s3cret")
	issued := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return issued }
	token, err := auth.IssueAdminToken("ops", time.Minute)
	require.NoError(t, err)

	auth.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = auth.ValidateAdminToken(token)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestAdminTokenRejectsOtherRoles(t *testing.T) {
	secret := []byte("s3cret")
	learner := jwt.NewWithClaims(jwt.SigningMethodHS256, &AdminClaims{Role: "learner"})
	signed, err := learner.SignedString(secret)
	require.NoError(t, err)

	_, err = NewAuthenticator("s3cret").ValidateAdminToken(signed)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestExtractBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, extractBearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, extractBearerToken(req))

	req.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", extractBearerToken(req))
}

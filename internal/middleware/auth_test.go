package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateTokenCompanyClaim(t *testing.T) {
	validator := NewTokenValidator("topsecret")
	token := signToken(t, "topsecret", jwt.MapClaims{
		"company_id": "acme",
		"exp":        time.Now().Add(time.Hour).Unix(),
	})

	companyID, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acme", companyID)
}

func TestValidateTokenFallsBackToSubject(t *testing.T) {
	validator := NewTokenValidator("topsecret")
	token := signToken(t, "topsecret", jwt.MapClaims{
		"sub": "beta",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	companyID, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "beta", companyID)
}

func TestValidateTokenRejections(t *testing.T) {
	validator := NewTokenValidator("topsecret")

	wrongSecret := signToken(t, "othersecret", jwt.MapClaims{"company_id": "acme"})
	_, err := validator.ValidateToken(wrongSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := signToken(t, "topsecret", jwt.MapClaims{
		"company_id": "acme",
		"exp":        time.Now().Add(-time.Hour).Unix(),
	})
	_, err = validator.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noIdentity := signToken(t, "topsecret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	_, err = validator.ValidateToken(noIdentity)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = validator.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := NewTokenValidator("topsecret")

	r := gin.New()
	r.Use(AuthMiddleware(validator))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"company_id": c.GetString("companyID")})
	})

	t.Run("valid bearer token", func(t *testing.T) {
		token := signToken(t, "topsecret", jwt.MapClaims{
			"company_id": "acme",
			"exp":        time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"company_id":"acme"`)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

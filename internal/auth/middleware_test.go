package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, claims jwt.RegisteredClaims, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newRouter(audience string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWTMiddleware(testSecret, audience), func(c *gin.Context) {
		subject, _ := GetUserID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"subject": subject})
	})
	return r
}

func doRequest(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, testSecret)

	resp := doRequest(newRouter(""), "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "ops", body["subject"])
}

func TestJWTMiddlewareRejections(t *testing.T) {
	valid := jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	expired := jwt.RegisteredClaims{Subject: "ops", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}
	noSubject := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	tests := []struct {
		name     string
		header   string
		audience string
		wantErr  string
	}{
		{name: "missing header", header: "", wantErr: "authorization header required"},
		{name: "wrong scheme", header: "Basic abc", wantErr: "invalid authorization header"},
		{name: "wrong secret", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, valid, "other"), wantErr: "invalid token"},
		{name: "expired", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, expired, testSecret), wantErr: "invalid token"},
		{name: "no subject", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, noSubject, testSecret), wantErr: "missing subject"},
		{name: "audience mismatch", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, valid, testSecret), audience: "palm-admin", wantErr: "invalid audience"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(newRouter(tt.audience), tt.header)
			require.Equal(t, http.StatusUnauthorized, resp.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			require.Equal(t, tt.wantErr, body["error"])
		})
	}
}

func TestJWTMiddlewareAcceptsMatchingAudience(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "ops",
		Audience:  jwt.ClaimStrings{"palm-admin"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, testSecret)

	resp := doRequest(newRouter("palm-admin"), "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestGetUserIDWithoutValue(t *testing.T) {
	_, ok := GetUserID(context.Background())
	require.False(t, ok)
}

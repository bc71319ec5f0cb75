// Package auth guards the read-only analysis routes with HMAC-signed bearer
// tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const subjectKey contextKey = "authSubject"

var (
	errMissingHeader = errors.New("authorization header required")
	errBadHeader     = errors.New("invalid authorization header")
	errInvalidToken  = errors.New("invalid token")
	errBadAudience   = errors.New("invalid audience")
	errNoSubject     = errors.New("missing subject")
)

// GetUserID returns the authenticated token subject stored on ctx.
func GetUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(subjectKey).(string)
	return value, ok && value != ""
}

// JWTMiddleware rejects requests without a valid HS256/384/512 bearer token.
// When audience is non-empty the token must list it.
func JWTMiddleware(secret, audience string) gin.HandlerFunc {
	key := []byte(strings.TrimSpace(secret))
	audience = strings.TrimSpace(audience)

	return func(c *gin.Context) {
		if len(key) == 0 {
			unauthorized(c, errors.New("missing JWT secret"))
			return
		}

		subject, err := authenticate(c.Request.Header.Get("Authorization"), key, audience)
		if err != nil {
			unauthorized(c, err)
			return
		}

		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), subjectKey, subject))
		c.Set(string(subjectKey), subject)
		c.Next()
	}
}

func authenticate(header string, key []byte, audience string) (string, error) {
	raw, err := extractBearerToken(header)
	if err != nil {
		return "", err
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	if audience != "" && !slices.Contains(claims.Audience, audience) {
		return "", errBadAudience
	}
	if claims.Subject == "" {
		return "", errNoSubject
	}
	return claims.Subject, nil
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errBadHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
}

package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the gin context key holding the caller's user id.
const UserIDKey = "user_id"

// HeaderUserID carries the caller's id when header identity is allowed.
const HeaderUserID = "X-User-ID"

type IdentityConfig struct {
	JWTSecret []byte
	// AllowHeader trusts X-User-ID when no bearer token is present.
	AllowHeader bool
	// Optional makes anonymous requests pass with an empty user id.
	Optional bool
}

// public paths never need an identity
func isPublicPath(path string) bool {
	return strings.HasPrefix(path, "/swagger") ||
		strings.HasPrefix(path, "/docs") ||
		strings.HasPrefix(path, "/healthz")
}

// Identity resolves who is calling. The id is used as a display label and
// default task owner; it grants nothing.
func Identity(cfg IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		tokenStr := bearerToken(c)
		if tokenStr == "" && c.Request.URL.Path == "/ws" {
			// browsers cannot set headers on a WebSocket handshake
			tokenStr = c.Query("token")
		}
		if tokenStr != "" {
			userID, err := ParseToken(cfg.JWTSecret, tokenStr)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
				return
			}
			c.Set(UserIDKey, userID)
			c.Next()
			return
		}

		if cfg.AllowHeader {
			if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
				c.Set(UserIDKey, id)
				c.Next()
				return
			}
			if id := strings.TrimSpace(c.Query("userId")); id != "" && c.Request.URL.Path == "/ws" {
				c.Set(UserIDKey, id)
				c.Next()
				return
			}
		}

		if cfg.Optional {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing identity"})
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ParseToken validates an HS256 token and returns its subject.
func ParseToken(secret []byte, tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}, jwt.WithLeeway(2*time.Minute), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

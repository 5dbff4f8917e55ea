package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"taskboard/internal/utils"
)

var secret = []byte("test-secret")

func identityRouter(cfg IdentityConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(cfg))
	r.GET("/whoami", func(c *gin.Context) {
		id, _ := c.Get(UserIDKey)
		c.String(http.StatusOK, "%v", id)
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearerTokenSetsUser(t *testing.T) {
	r := identityRouter(IdentityConfig{JWTSecret: secret})
	token, err := utils.IssueToken(secret, "alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := do(r, req)
	if w.Code != http.StatusOK || w.Body.String() != "alice" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestRejectsBadTokens(t *testing.T) {
	r := identityRouter(IdentityConfig{JWTSecret: secret, AllowHeader: true})

	wrongKey, _ := utils.IssueToken([]byte("other"), "alice", time.Hour)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString(secret)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString(secret)

	for name, token := range map[string]string{"wrong key": wrongKey, "expired": expired, "no expiry": noExpiry, "garbage": "abc"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			// a bad token is not rescued by the header
			req.Header.Set(HeaderUserID, "mallory")
			if w := do(r, req); w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestHeaderIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, "bob")

	if w := do(identityRouter(IdentityConfig{JWTSecret: secret}), req); w.Code != http.StatusUnauthorized {
		t.Fatalf("header identity accepted while disabled: %d", w.Code)
	}
	w := do(identityRouter(IdentityConfig{JWTSecret: secret, AllowHeader: true}), req)
	if w.Code != http.StatusOK || w.Body.String() != "bob" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestOptionalAndPublicPaths(t *testing.T) {
	strict := identityRouter(IdentityConfig{JWTSecret: secret})
	if w := do(strict, httptest.NewRequest(http.MethodGet, "/healthz", nil)); w.Code != http.StatusOK {
		t.Fatalf("public path blocked: %d", w.Code)
	}
	if w := do(strict, httptest.NewRequest(http.MethodGet, "/whoami", nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous passed strict identity: %d", w.Code)
	}
	optional := identityRouter(IdentityConfig{JWTSecret: secret, Optional: true})
	if w := do(optional, httptest.NewRequest(http.MethodGet, "/whoami", nil)); w.Code != http.StatusOK {
		t.Fatalf("anonymous blocked with optional identity: %d", w.Code)
	}
}

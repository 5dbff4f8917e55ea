package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueTokenClaims(t *testing.T) {
	secret := []byte("s")
	raw, err := IssueToken(secret, "alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) { return secret, nil }); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "alice" || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if d := time.Until(claims.ExpiresAt.Time); d < 59*time.Minute || d > time.Hour {
		t.Fatalf("unexpected expiry in %s", d)
	}
}

func TestIssueTokenRequiresInputs(t *testing.T) {
	if _, err := IssueToken(nil, "alice", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := IssueToken([]byte("s"), "", time.Hour); err == nil {
		t.Fatal("expected error for empty user")
	}
}

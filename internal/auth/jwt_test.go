package auth

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{
		UserID: "user-1",
		Role:   "employee",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if claims.UserID != "user-1" || claims.Role != "employee" || claims.Subject != "user-1" {
		t.Fatalf("unexpected claims")
	}
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("other-secret", "issuer", valid); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
	if _, err := ParseToken("secret", "other-issuer", valid); err == nil {
		t.Fatalf("expected wrong issuer to fail")
	}

	expired, err := NewAccessToken("secret", "issuer", -time.Minute, Claims{UserID: "user-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "issuer", expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	anonymous, err := NewAccessToken("secret", "issuer", time.Minute, Claims{})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "issuer", anonymous); err == nil {
		t.Fatalf("expected token without user_id to fail")
	}
	if _, err := ParseToken("secret", "issuer", "not.a.jwt"); err == nil {
		t.Fatalf("expected garbage to fail")
	}
}

package auth

import (
	"errors"
	"testing"
	"time"
)

var secret = []byte("test-secret")

func TestIssueAndParse(t *testing.T) {
	token, err := IssueToken(secret, "u1", "Avery", "user", "DeptA", "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "u1" || claims.Name != "Avery" || claims.Role != "user" || claims.Department != "DeptA" || claims.ID != "jti-1" {
		t.Errorf("claims round-trip mismatch: %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(secret, "u1", "Avery", "user", "", "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := ParseToken([]byte("other"), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := IssueToken(secret, "u1", "Avery", "user", "", "jti-1", -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := ParseToken(secret, token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ParseToken(secret, "not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

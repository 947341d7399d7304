package auth

import (
	"testing"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/common/config"
)

func TestGenerateAndParseAccessToken(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
		Issuer:    "carlinkrent",
		Audience:  "carlinkrent",
	}

	token, exp, err := GenerateAccessToken(cfg, "client-1", "lina@example.com", []string{RoleClient}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	if exp.Before(time.Now()) {
		t.Fatalf("expected exp in future")
	}

	claims, err := ParseToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "client-1" {
		t.Fatalf("subject mismatch: %s", claims.Subject)
	}
	if claims.Email != "lina@example.com" {
		t.Fatalf("email mismatch: %s", claims.Email)
	}
	if !claims.HasRole(RoleClient) || claims.HasRole(RoleAdmin) {
		t.Fatalf("roles mismatch: %#v", claims.Roles)
	}
}

func TestParseTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "secret-a", Issuer: "carlinkrent"}
	token, _, err := GenerateAccessToken(cfg, "p-1", "", []string{RoleProvider}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := ParseToken(config.AuthConfig{JWTSecret: "secret-b"}, token); err == nil {
		t.Fatalf("expected parse failure with wrong secret")
	}
	if _, err := ParseToken(config.AuthConfig{JWTSecret: "secret-a", Issuer: "someone-else"}, token); err == nil {
		t.Fatalf("expected parse failure with wrong issuer")
	}
}

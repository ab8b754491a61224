package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/inkledger-backend/pkg/config"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
)

func TestMintAndParseActorToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "inkbook-auth"}
	now := time.Now().UTC()
	actor := Actor{ID: uuid.New(), Role: enums.ActorRoleArtist, BranchID: uuid.New()}

	token, err := MintActorToken(cfg, now, 30*time.Minute, actor)
	if err != nil {
		t.Fatalf("mint actor token: %v", err)
	}

	claims, err := ParseActorToken(cfg, token)
	if err != nil {
		t.Fatalf("parse actor token: %v", err)
	}
	if claims.Actor() != actor {
		t.Fatalf("expected actor %+v, got %+v", actor, claims.Actor())
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		t.Fatalf("expected expiry after issue time")
	}
}

func TestParseActorTokenRejectsWrongIssuer(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "inkbook-auth"}
	token, err := MintActorToken(cfg, time.Now(), time.Minute, Actor{ID: uuid.New(), Role: enums.ActorRoleBoss})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseActorToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestParseActorTokenRejectsExpired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "inkbook-auth"}
	token, err := MintActorToken(cfg, time.Now().Add(-2*time.Hour), time.Minute, Actor{ID: uuid.New(), Role: enums.ActorRoleBoss})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	_, err = ParseActorToken(cfg, token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestMintActorTokenValidatesRole(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "inkbook-auth"}
	if _, err := MintActorToken(cfg, time.Now(), time.Minute, Actor{ID: uuid.New(), Role: "OWNER"}); err == nil {
		t.Fatal("expected invalid role to be rejected")
	}
}

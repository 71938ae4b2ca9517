package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func hs256Config() Config {
	return Config{
		TokenTTL:      time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "accountauth-test",
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	m, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	before := time.Now()
	token, expiresAt, err := m.Issue("u1", "alice@example.com", []string{"user", "admin"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	wantExpiry := before.Add(time.Hour)
	if expiresAt.Before(wantExpiry.Add(-5*time.Second)) || expiresAt.After(wantExpiry.Add(5*time.Second)) {
		t.Fatalf("expiry %v not ~1h from issuance", expiresAt)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Subject != "u1" {
		t.Fatalf("subject %q", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("email claim %q", claims.Email)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "user" || claims.Roles[1] != "admin" {
		t.Fatalf("roles claim %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatal("expected jti claim")
	}
	if claims.IssuedAt == nil {
		t.Fatal("expected iat claim")
	}
	if !claims.ExpiresAt.Time.Equal(expiresAt) {
		t.Fatalf("exp claim %v != reported expiry %v", claims.ExpiresAt.Time, expiresAt)
	}
}

func TestIssueUniqueTokenIDs(t *testing.T) {
	m, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	first, _, err := m.Issue("u1", "a@example.com", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	second, _, err := m.Issue("u1", "a@example.com", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	c1, err := m.Parse(first)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	c2, err := m.Parse(second)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if c1.ID == c2.ID {
		t.Fatal("two sessions must carry distinct jti claims")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := hs256Config()
	cfg.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, _, err := m.Issue("u1", "a@example.com", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	issuer, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	otherCfg := hs256Config()
	otherCfg.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	verifier, err := NewManager(otherCfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, _, err := issuer.Issue("u1", "a@example.com", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := verifier.Parse(token); err == nil {
		t.Fatal("expected wrong-key token to be rejected")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := hs256Config()
	cfg.Issuer = "someone-else"
	issuer, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	verifier, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, _, err := issuer.Issue("u1", "a@example.com", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := verifier.Parse(token); err == nil {
		t.Fatal("expected wrong-issuer token to be rejected")
	}
}

func TestParseRejectsAlgorithmConfusion(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519 keygen error: %v", err)
	}

	edManager, err := NewManager(Config{
		TokenTTL:      time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "accountauth-test",
	})
	if err != nil {
		t.Fatalf("NewManager(ed25519) error: %v", err)
	}

	hsManager, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager(hs256) error: %v", err)
	}

	edToken, _, err := edManager.Issue("u1", "a@example.com", nil)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// An EdDSA-signed token must never validate against an HS256 manager,
	// even though both managers trust the same issuer.
	if _, err := hsManager.Parse(edToken); err == nil {
		t.Fatal("expected cross-algorithm token to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	bad := []Config{
		{},
		{TokenTTL: time.Hour, SigningMethod: MethodHS256},
		{TokenTTL: time.Hour, SigningMethod: "rs256", PrivateKey: []byte("k")},
		{TokenTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: 10 * time.Minute},
		{TokenTTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: []byte("too short")},
	}

	for i, cfg := range bad {
		if _, err := NewManager(cfg); err == nil {
			t.Errorf("config %d: expected rejection", i)
		}
	}
}

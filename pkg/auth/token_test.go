package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Helper to generate fresh keys for each test
func generateTestKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}

	privBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privBytes,
	})

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("Failed to marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	return privPEM, pubPEM
}

func signWith(t *testing.T, privPEM []byte, method jwt.SigningMethod, claims *Claims) string {
	t.Helper()
	block, _ := pem.Decode(privPEM)
	pk, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse key: %v", err)
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(pk)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return token
}

func TestTokenLifecycle(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)
	signer, err := NewSigner(privPEM, pubPEM, "test-issuer")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	userID := uuid.New()

	// 1. Generate
	token, err := signer.GenerateToken(userID, "Test User", time.Now())
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	// 2. Validate with a verify-only signer, as the API does
	verifier, err := NewSignerFromPublicKey(pubPEM, "test-issuer")
	if err != nil {
		t.Fatalf("NewSignerFromPublicKey failed: %v", err)
	}
	claims, err := verifier.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	// 3. Verify Claims
	got, err := claims.UserID()
	if err != nil || got != userID {
		t.Errorf("got subject %s, want %s", claims.Subject, userID)
	}
	if claims.Name != "Test User" {
		t.Errorf("got name %q, want %q", claims.Name, "Test User")
	}

	// 4. Verify-only signer cannot mint
	if _, err := verifier.GenerateToken(userID, "x", time.Now()); err == nil {
		t.Error("verify-only signer should not generate tokens")
	}
}

func TestSecurityScenarios(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)
	signer, _ := NewSigner(privPEM, pubPEM, "test-issuer")

	validClaims := func() *Claims {
		return &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.New().String(),
				Issuer:    "test-issuer",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Name: "mallory",
		}
	}

	t.Run("Rejects Expired Token", func(t *testing.T) {
		claims := validClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))

		if _, err := signer.ValidateToken(signWith(t, privPEM, jwt.SigningMethodRS256, claims)); err == nil {
			t.Error("ValidateToken should have rejected expired token")
		}
	})

	t.Run("Rejects Token Without Expiry", func(t *testing.T) {
		claims := validClaims()
		claims.ExpiresAt = nil

		if _, err := signer.ValidateToken(signWith(t, privPEM, jwt.SigningMethodRS256, claims)); err == nil {
			t.Error("ValidateToken should have rejected token without exp")
		}
	})

	t.Run("Rejects Wrong Issuer", func(t *testing.T) {
		claims := validClaims()
		claims.Issuer = "someone-else"

		if _, err := signer.ValidateToken(signWith(t, privPEM, jwt.SigningMethodRS256, claims)); err == nil {
			t.Error("ValidateToken should have rejected foreign issuer")
		}
	})

	t.Run("Rejects Non-UUID Subject", func(t *testing.T) {
		claims := validClaims()
		claims.Subject = "admin"

		if _, err := signer.ValidateToken(signWith(t, privPEM, jwt.SigningMethodRS256, claims)); err == nil {
			t.Error("ValidateToken should have rejected non-uuid subject")
		}
	})

	t.Run("Rejects Wrong Key Signature", func(t *testing.T) {
		attackerPriv, _ := generateTestKeys(t)

		if _, err := signer.ValidateToken(signWith(t, attackerPriv, jwt.SigningMethodRS256, validClaims())); err == nil {
			t.Error("ValidateToken should have rejected token signed by wrong key")
		}
	})

	t.Run("Rejects HMAC Algorithm Confusion", func(t *testing.T) {
		// An attacker swaps RS256 for HS256 and signs with a shared secret
		tokenString, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("some-secret"))

		if _, err := signer.ValidateToken(tokenString); err == nil {
			t.Error("ValidateToken should have rejected HS256 algorithm")
		}
	})

	t.Run("Rejects Malformed Token", func(t *testing.T) {
		if _, err := signer.ValidateToken("this.is.garbage"); err == nil {
			t.Error("Should reject malformed string")
		}
	})
}

func TestNewSignerValidation(t *testing.T) {
	privPEM, pubPEM := generateTestKeys(t)

	t.Run("Fails on invalid private key", func(t *testing.T) {
		if _, err := NewSigner([]byte("not-a-pem"), pubPEM, "test-issuer"); err == nil {
			t.Error("Should fail on invalid private key")
		}
	})

	t.Run("Fails on invalid public key", func(t *testing.T) {
		if _, err := NewSigner(privPEM, []byte("not-a-pem"), "test-issuer"); err == nil {
			t.Error("Should fail on invalid public key")
		}
		if _, err := NewSignerFromPublicKey([]byte("not-a-pem"), "test-issuer"); err == nil {
			t.Error("Should fail on invalid public key")
		}
	})
}

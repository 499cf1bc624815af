package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "auth-service"
	testAudience = "cwrk-planet"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, method jwt.SigningMethod, claims AccessClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func claimsAt(now time.Time, sub string) AccessClaims {
	return AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   sub,
			Issuer:    testIssuer,
			Audience:  testAudience,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(15 * time.Minute).Unix(),
		},
		Username: "alice",
	}
}

func TestJWTValidator_Validate(t *testing.T) {
	req := require.New(t)
	key := newKey(t)
	v := NewJWTValidator(&key.PublicKey, testIssuer, testAudience, 30*time.Second)

	// Given a fresh token for user 7
	tok := sign(t, key, jwt.SigningMethodRS256, claimsAt(time.Now(), "7"))

	// When
	sess, err := v.Validate(context.Background(), tok)

	// Then
	req.NoError(err)
	req.Equal(domain.Session{UserID: 7, Username: "alice"}, sess)
}

func TestJWTValidator_Rejects(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	now := time.Now()

	expired := claimsAt(now.Add(-time.Hour), "7")
	wrongIssuer := claimsAt(now, "7")
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := claimsAt(now, "7")
	wrongAudience.Audience = "other"

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"foreign key", sign(t, other, jwt.SigningMethodRS256, claimsAt(now, "7"))},
		{"expired", sign(t, key, jwt.SigningMethodRS256, expired)},
		{"issuer", sign(t, key, jwt.SigningMethodRS256, wrongIssuer)},
		{"audience", sign(t, key, jwt.SigningMethodRS256, wrongAudience)},
		{"subject", sign(t, key, jwt.SigningMethodRS256, claimsAt(now, "abc"))},
		{"alg", sign(t, key, jwt.SigningMethodRS512, claimsAt(now, "7"))},
	}

	v := NewJWTValidator(&key.PublicKey, testIssuer, testAudience, time.Second)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tc.token)
			require.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}

func TestJWTValidator_ClockSkew(t *testing.T) {
	req := require.New(t)
	key := newKey(t)
	now := time.Now()

	// Given a token that expired 10s ago
	c := claimsAt(now.Add(-time.Hour), "3")
	c.ExpiresAt = now.Add(-10 * time.Second).Unix()
	tok := sign(t, key, jwt.SigningMethodRS256, c)

	// Then it is accepted within a 30s skew and rejected without one
	_, err := NewJWTValidator(&key.PublicKey, testIssuer, testAudience, 30*time.Second).Validate(context.Background(), tok)
	req.NoError(err)

	_, err = NewJWTValidator(&key.PublicKey, testIssuer, testAudience, 0).Validate(context.Background(), tok)
	req.ErrorIs(err, domain.ErrInvalidToken)
}

func TestLoadRSAPublicKeyFromPEM(t *testing.T) {
	req := require.New(t)
	key := newKey(t)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	req.NoError(err)
	path := filepath.Join(t.TempDir(), "jwt.pub")
	req.NoError(os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	pub, err := LoadRSAPublicKeyFromPEM(path)
	req.NoError(err)
	req.True(key.PublicKey.Equal(pub))

	_, err = LoadRSAPublicKeyFromPEM(filepath.Join(t.TempDir(), "missing.pub"))
	req.Error(err)
}

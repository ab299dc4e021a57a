package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptguild/promptguild/internal/config"
)

func TestDevAuthenticator(t *testing.T) {
	a := NewDevAuthenticator()
	ctx := context.Background()

	id, err := a.Authenticate(ctx, DevAPIKey)
	require.NoError(t, err)
	assert.Equal(t, DevUserID, id.UserID)

	id, err = a.Authenticate(ctx, DevToken("alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UserID)
	assert.Equal(t, "alice@dev.promptguild.local", id.Email)

	for _, bad := range []string{"", "nope", DevAPIKey + ":", DevAPIKey + ":a b", DevAPIKey + "x"} {
		_, err := a.Authenticate(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestJWTAuthenticator_RoundTrip(t *testing.T) {
	a, err := NewJWTAuthenticator("s3cret", "promptguild")
	require.NoError(t, err)

	tok, err := a.Issue(Identity{UserID: "u1", Email: "u1@example.com", DisplayName: "User One"}, time.Hour)
	require.NoError(t, err)

	id, err := a.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "u1", Email: "u1@example.com", DisplayName: "User One"}, id)
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	a, err := NewJWTAuthenticator("s3cret", "promptguild")
	require.NoError(t, err)
	other, err := NewJWTAuthenticator("different", "promptguild")
	require.NoError(t, err)
	otherIssuer, err := NewJWTAuthenticator("s3cret", "someone-else")
	require.NoError(t, err)

	wrongSecret, _ := other.Issue(Identity{UserID: "u1"}, time.Hour)
	wrongIssuer, _ := otherIssuer.Issue(Identity{UserID: "u1"}, time.Hour)
	noSubject, _ := a.Issue(Identity{}, time.Hour)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u1", Issuer: "promptguild", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}).SignedString([]byte("s3cret"))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u1", Issuer: "promptguild",
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": wrongSecret,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"expired":      expired,
		"alg none":     unsigned,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = NewJWTAuthenticator("", "")
	assert.Error(t, err)
}

func TestOIDCAuthenticator(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	const issuer = "https://issuer.example.com"
	verifier := oidc.NewVerifier(issuer, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		&oidc.Config{ClientID: "promptguild-web"})
	a := NewOIDCAuthenticatorWithVerifier(verifier)

	sign := func(claims jwt.MapClaims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return tok
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":   issuer,
			"aud":   "promptguild-web",
			"sub":   "oidc-user",
			"email": "person@example.com",
			"name":  "Person",
			"exp":   time.Now().Add(time.Hour).Unix(),
			"iat":   time.Now().Unix(),
		}
	}

	id, err := a.Authenticate(context.Background(), sign(base()))
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "oidc-user", Email: "person@example.com", DisplayName: "Person"}, id)

	unverified := base()
	unverified["email_verified"] = false
	id, err = a.Authenticate(context.Background(), sign(unverified))
	require.NoError(t, err)
	assert.Empty(t, id.Email)

	wrongAud := base()
	wrongAud["aud"] = "another-client"
	_, err = a.Authenticate(context.Background(), sign(wrongAud))
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := base()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	_, err = a.Authenticate(context.Background(), sign(expired))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.NewForTesting()
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &DevAuthenticator{}, a)

	cfg.AuthMode = "jwt"
	cfg.JWTSecret = "s"
	a, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &JWTAuthenticator{}, a)

	cfg.AuthMode = "dev"
	cfg.Environment = config.EnvProduction
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)

	cfg.AuthMode = "kerberos"
	_, err = New(context.Background(), cfg)
	assert.True(t, err != nil && !errors.Is(err, ErrInvalidToken))
}

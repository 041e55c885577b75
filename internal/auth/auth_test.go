package auth_test

import (
	"encoding/base64"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/auth"
	"github.com/tailcall-oss/gateway/internal/config"
)

func signHS256(t *testing.T, secret, issuer string) string {
	t.Helper()
	claims := jwt.MapClaims{}
	if issuer != "" {
		claims["iss"] = issuer
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestGlobalContextVerifiesJWTBearerToken(t *testing.T) {
	g := auth.New(&config.AuthConfig{JWT: &config.JWTAuth{Secret: "shh", Issuer: "gateway"}})

	good := signHS256(t, "shh", "gateway")
	require.NoError(t, g.Verify(auth.Credentials{Authorization: "Bearer " + good}))

	wrongSecret := signHS256(t, "other", "gateway")
	require.ErrorIs(t, g.Verify(auth.Credentials{Authorization: "Bearer " + wrongSecret}), auth.ErrDenied)

	wrongIssuer := signHS256(t, "shh", "someone-else")
	require.ErrorIs(t, g.Verify(auth.Credentials{Authorization: "Bearer " + wrongIssuer}), auth.ErrDenied)

	require.ErrorIs(t, g.Verify(auth.Credentials{Authorization: ""}), auth.ErrDenied)
}

func TestGlobalContextVerifiesBasicAuth(t *testing.T) {
	g := auth.New(&config.AuthConfig{Basic: &config.BasicAuth{Username: "alice", Password: "wonderland"}})

	valid := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:wonderland"))
	require.NoError(t, g.Verify(auth.Credentials{Authorization: valid}))

	invalid := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:wrong"))
	require.ErrorIs(t, g.Verify(auth.Credentials{Authorization: invalid}), auth.ErrDenied)

	require.ErrorIs(t, g.Verify(auth.Credentials{Authorization: "garbage"}), auth.ErrDenied)
}

func TestGlobalContextWithNoMechanismConfiguredDeniesEverything(t *testing.T) {
	g := auth.New(nil)
	require.ErrorIs(t, g.Verify(auth.Credentials{Authorization: "Bearer x"}), auth.ErrDenied)
}

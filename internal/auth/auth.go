// Package auth verifies the single auth mechanism a ConfigModule's
// top-level "auth" section configures, consulted by ir.Protect before a
// @protected field's resolver runs.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tailcall-oss/gateway/internal/config"
)

// ErrDenied is wrapped by every verification failure, so callers (the
// server's error-to-GraphQLError mapping) can recognize an auth denial
// without string-matching messages.
var ErrDenied = errors.New("auth: request denied")

// Credentials is the inbound request's raw Authorization header value, the
// only piece of ambient state GlobalContext.Verify needs.
type Credentials struct {
	Authorization string
}

// GlobalContext verifies Credentials against one configured mechanism.
// The zero value (built from a nil AuthConfig) denies everything, since a
// blueprint that wraps a field in Protect always pairs it with an
// AuthConfig (enforced at compile time by internal/blueprint).
type GlobalContext struct {
	jwt   *jwtVerifier
	basic *basicVerifier
}

// New builds a GlobalContext from cfg. cfg is nil only when no field in the
// blueprint is @protected, in which case Verify is never called.
func New(cfg *config.AuthConfig) *GlobalContext {
	if cfg == nil {
		return &GlobalContext{}
	}
	g := &GlobalContext{}
	if cfg.JWT != nil {
		g.jwt = &jwtVerifier{secret: []byte(cfg.JWT.Secret), issuer: cfg.JWT.Issuer}
	}
	if cfg.Basic != nil {
		g.basic = &basicVerifier{username: cfg.Basic.Username, password: cfg.Basic.Password}
	}
	return g
}

// Verify checks creds against the configured mechanism, returning an error
// wrapping ErrDenied on any failure (missing header, bad scheme, bad
// signature, wrong issuer, wrong credentials).
func (g *GlobalContext) Verify(creds Credentials) error {
	switch {
	case g.jwt != nil:
		return g.jwt.verify(creds.Authorization)
	case g.basic != nil:
		return g.basic.verify(creds.Authorization)
	default:
		return fmt.Errorf("%w: no auth mechanism configured", ErrDenied)
	}
}

type jwtVerifier struct {
	secret []byte
	issuer string
}

func (v *jwtVerifier) verify(header string) error {
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return fmt.Errorf("%w: missing bearer token", ErrDenied)
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: invalid token: %v", ErrDenied, err)
	}

	if v.issuer != "" {
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("%w: token has no claims", ErrDenied)
		}
		iss, err := claims.GetIssuer()
		if err != nil || iss != v.issuer {
			return fmt.Errorf("%w: unexpected issuer %q", ErrDenied, iss)
		}
	}
	return nil
}

type basicVerifier struct {
	username string
	password string
}

func (v *basicVerifier) verify(header string) error {
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return fmt.Errorf("%w: missing basic credentials", ErrDenied)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: malformed basic credentials", ErrDenied)
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return fmt.Errorf("%w: malformed basic credentials", ErrDenied)
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(v.username)) != 1 ||
		subtle.ConstantTimeCompare([]byte(pass), []byte(v.password)) != 1 {
		return fmt.Errorf("%w: bad credentials", ErrDenied)
	}
	return nil
}

// Package auth admits websocket connections: a connection is refused before
// any room event unless it carries a valid token for a known user.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"collabboard/internal/services/identity"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// AuthError rejects a handshake outright.
type AuthError struct {
	Reason error
}

func (e *AuthError) Error() string { return "authentication error: " + e.Reason.Error() }
func (e *AuthError) Unwrap() error { return e.Reason }

type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Credential carries the two places a token may arrive. Token takes priority
// over Cookie.
type Credential struct {
	Token  string
	Cookie string
}

// CredentialFromRequest reads the explicit token (Authorization bearer
// header, then the "token" query parameter) and the auth cookie.
func CredentialFromRequest(r *http.Request, cookieName string) Credential {
	var c Credential
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		c.Token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c.Token == "" {
		c.Token = r.URL.Query().Get("token")
	}
	if ck, err := r.Cookie(cookieName); err == nil {
		c.Cookie = ck.Value
	}
	return c
}

type Gate struct {
	secret     []byte
	identities identity.IIdentityService
}

func NewGate(secret string, identities identity.IIdentityService) *Gate {
	return &Gate{secret: []byte(secret), identities: identities}
}

// Admit validates the credential and resolves the user profile. Every
// failure is an *AuthError.
func (g *Gate) Admit(ctx context.Context, c Credential) (*identity.Identity, error) {
	token := c.Token
	if token == "" {
		token = c.Cookie
	}
	if token == "" {
		return nil, &AuthError{Reason: ErrNoToken}
	}

	claims, err := g.validate(token)
	if err != nil {
		return nil, &AuthError{Reason: err}
	}

	id, err := g.identities.GetIdentity(ctx, claims.UserID)
	if err != nil {
		return nil, &AuthError{Reason: err}
	}
	return id, nil
}

func (g *Gate) validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue signs a token for userID valid for ttl.
func (g *Gate) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

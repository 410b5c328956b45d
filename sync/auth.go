package sync

import (
	"fmt"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AuthNone   = "none"
	AuthAPIKey = "apikey"
	AuthBasic  = "basic"
	AuthJWT    = "jwt-HS256"
)

// zgwClaims follows the claim set ZGW style APIs expect from a client.
type zgwClaims struct {
	ClientID           string `json:"client_id"`
	UserID             string `json:"user_id,omitempty"`
	UserRepresentation string `json:"user_representation,omitempty"`
	jwt.RegisteredClaims
}

// jwtLifetime bounds how long a generated token is accepted.
const jwtLifetime = 5 * time.Minute

func (a SourceAuth) token(now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, zgwClaims{
		ClientID:           a.ClientID,
		UserID:             a.UserID,
		UserRepresentation: a.UserRepresentation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.ClientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
		},
	})
	signed, err := token.SignedString([]byte(a.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt %w", err)
	}
	return signed, nil
}

// apply adds the credentials of a to the request builder.
func (a SourceAuth) apply(rb *requests.Builder, now time.Time) error {
	switch a.Type {
	case "", AuthNone:
	case AuthAPIKey:
		header := a.Header
		if header == "" {
			header = "Authorization"
		}
		rb.Header(header, a.Key)
	case AuthBasic:
		rb.BasicAuth(a.Username, a.Password)
	case AuthJWT:
		token, err := a.token(now)
		if err != nil {
			return err
		}
		rb.Bearer(token)
	default:
		return fmt.Errorf("unsupported source auth type %q", a.Type)
	}
	return nil
}

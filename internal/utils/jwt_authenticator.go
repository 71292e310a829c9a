package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const defaultTokenTTL = 24 * time.Hour

// AuthenticatedUser is the identity carried by a session token.
type AuthenticatedUser struct {
	Address   string    `json:"address"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// JwtAuthenticator issues and validates HS256 session tokens for wallet logins.
type JwtAuthenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewJwtAuthenticator(secret, issuer string) *JwtAuthenticator {
	return &JwtAuthenticator{secret: []byte(secret), issuer: issuer, ttl: defaultTokenTTL}
}

// SetTTL overrides the token lifetime.
func (a *JwtAuthenticator) SetTTL(ttl time.Duration) {
	a.ttl = ttl
}

func (a *JwtAuthenticator) IssueToken(address string, isAdmin bool) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := sessionClaims{
		Admin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(address),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (a *JwtAuthenticator) ValidateToken(tokenString string) (*AuthenticatedUser, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("JWT secret not configured")
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return nil, errors.New("invalid token issuer")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	user := &AuthenticatedUser{Address: claims.Subject, IsAdmin: claims.Admin}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}
	return user, nil
}

package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bizconnect/internal/domain/entity"
)

// Claims mirrors the Firebase custom claims so both auth modes yield the same principal.
type Claims struct {
	Role       string `json:"role,omitempty"`
	BusinessID string `json:"business_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier issues and checks HS256 tokens for local development and tests.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

func (v *Verifier) Issue(principal entity.Principal, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Role:       principal.Role,
		BusinessID: principal.BusinessID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (v *Verifier) VerifyToken(ctx context.Context, tokenString string) (entity.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return entity.Principal{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return entity.Principal{}, errors.New("invalid token")
	}

	role := claims.Role
	if role == "" {
		role = entity.RoleUser
	}
	return entity.Principal{
		UserID:     claims.Subject,
		Role:       role,
		BusinessID: claims.BusinessID,
	}, nil
}

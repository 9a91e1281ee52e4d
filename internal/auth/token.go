package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind tags a token as belonging to the access or refresh class. The
// two classes are signed with distinct secrets; the tag catches the case
// where both secrets were set to related values by mistake.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims is the fixed token payload: the registered subject/issued/expiry
// claims, the token class, and an open map for optional identity claims
// (username, email, fullName on access tokens).
type Claims struct {
	jwt.RegisteredClaims
	Kind     TokenKind         `json:"kind"`
	Identity map[string]string `json:"identity,omitempty"`
}

// Mint signs a token of the given kind for subjectID. identity may be nil;
// refresh tokens carry no identity claims beyond the subject. Each token
// gets a random jti so two mints for the same subject within the same
// second still produce distinct token strings.
func Mint(subjectID string, identity map[string]string, kind TokenKind, ttl time.Duration, secret []byte) (string, error) {
	jti, err := randomTokenID()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind:     kind,
		Identity: identity,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func randomTokenID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token id generation failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Verify checks signature, structure, kind and expiry. Expiry is checked
// with zero clock tolerance: a token even one second past its expiry is
// rejected. It returns ErrTokenExpired only for an otherwise valid token
// past its expiry; every other failure, including a kind mismatch or a
// token signed with the other class's secret, is ErrTokenMalformed.
func Verify(tokenString string, kind TokenKind, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !token.Valid || claims.Kind != kind || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

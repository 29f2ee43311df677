package services

import (
	"fmt"
	"time"

	"github.com/anonto42/writer/backend/pkg/apperrors"
	"github.com/golang-jwt/jwt/v4"
)

// VerificationTTL is how long an email verification link stays valid.
const VerificationTTL = 30 * time.Minute

const verifyPurpose = "email-verification"

type verificationClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks email verification tokens. Tokens are HS256
// JWTs bound to a user id and do not depend on the session.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: VerificationTTL, now: time.Now}
}

// Issue returns a signed verification token for userID.
func (t *TokenIssuer) Issue(userID uint) (string, error) {
	now := t.now()
	claims := verificationClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   verifyPurpose,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return signed, nil
}

// Parse returns the user id carried by a valid, unexpired token.
func (t *TokenIssuer) Parse(tokenString string) (uint, error) {
	claims := &verificationClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, apperrors.ErrInvalidToken
	}
	if claims.Subject != verifyPurpose || claims.UserID == 0 {
		return 0, apperrors.ErrInvalidToken
	}
	return claims.UserID, nil
}

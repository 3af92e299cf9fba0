package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL bounds how long a board token stays valid.
const tokenTTL = 24 * time.Hour

// TokenService issues and verifies board access tokens. A token is a
// capability scoped to a single join key: it proves the holder passed the
// board's password check once, so later calls need not carry the raw
// password. The grant travels with the request, never in process-global
// state.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// CreateBoardToken generates a signed token granting access to joinKey.
func (s *TokenService) CreateBoardToken(joinKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"joinKey": joinKey,
		"exp":     time.Now().Add(tokenTTL).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyBoardToken validates a token and returns the join key it grants
// access to.
func (s *TokenService) VerifyBoardToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	joinKey, ok := claims["joinKey"].(string)
	if !ok {
		return "", errors.New("joinKey claim missing")
	}

	return joinKey, nil
}

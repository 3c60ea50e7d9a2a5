package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid client credentials")
)

const DefaultTokenTTL = 24 * time.Hour

// Service issues and validates bearer tokens for capture and dashboard clients.
// Clients prove themselves with a shared secret.
type Service struct {
	jwtSecret    []byte
	clientSecret []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewService(jwtSecret, clientSecret string) *Service {
	return &Service{
		jwtSecret:    []byte(jwtSecret),
		clientSecret: []byte(clientSecret),
		ttl:          DefaultTokenTTL,
		now:          time.Now,
	}
}

// Authenticate checks the client secret and returns a signed token.
func (s *Service) Authenticate(clientID, secret string) (string, time.Time, error) {
	if clientID == "" || subtle.ConstantTimeCompare([]byte(secret), s.clientSecret) != 1 {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.GenerateToken(clientID)
}

func (s *Service) GenerateToken(clientID string) (string, time.Time, error) {
	expiresAt := s.now().Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"client_id": clientID,
		"iat":       s.now().Unix(),
		"exp":       expiresAt.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken returns the client id carried by a valid token.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		clientID, ok := claims["client_id"].(string)
		if !ok || clientID == "" {
			return "", fmt.Errorf("%w: missing client_id claim", ErrInvalidToken)
		}
		return clientID, nil
	}

	return "", ErrInvalidToken
}

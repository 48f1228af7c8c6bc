package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aman-churiwal/voice-qos/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a validated bearer token grants.
type Identity struct {
	UserID string
	// Highest priority the caller may request
	MaxPriority models.Priority
}

type TokenService struct {
	jwtSecret []byte // Stored in env (JWT_SECRET)
	jwtExpiry time.Duration
}

func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{
		jwtSecret: []byte(secret),
		jwtExpiry: expiry,
	}
}

// Issue signs a token for userID allowed to request up to maxPriority
func (s *TokenService) Issue(userID string, maxPriority models.Priority) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if !maxPriority.Valid() {
		return "", fmt.Errorf("%w: %d", models.ErrUnknownPriority, maxPriority)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          userID,
		"max_priority": maxPriority.String(),
		"exp":          now.Add(s.jwtExpiry).Unix(),
		"iat":          now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// Validates a JWT token and returns the identity it carries. Tokens without
// a max_priority claim are limited to NORMAL.
func (s *TokenService) Validate(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verifying signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, _ := claims.GetSubject()
	if userID == "" {
		// Older tokens carry the id in user_id
		userID, _ = claims["user_id"].(string)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	identity := &Identity{UserID: userID, MaxPriority: models.PriorityNormal}
	if raw, ok := claims["max_priority"].(string); ok {
		p, err := models.ParsePriority(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		identity.MaxPriority = p
	}

	return identity, nil
}

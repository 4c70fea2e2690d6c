package utils

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "RestaurantBackOffice"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevokedToken = errors.New("token has been revoked")
)

type CustomClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and checks session tokens. Logged out tokens stay blacklisted
// until they would have expired anyway.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu          sync.RWMutex
	blacklisted map[string]time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		secret:      []byte(secret),
		ttl:         ttl,
		now:         time.Now,
		blacklisted: make(map[string]time.Time),
	}
}

func (m *TokenManager) GenerateToken(userID uint, role string) (string, error) {
	now := m.now()
	claims := &CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) ParseToken(tokenString string) (*CustomClaims, error) {
	if m.IsRevoked(tokenString) {
		return nil, ErrRevokedToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Revoke blacklists a token until its own expiry.
func (m *TokenManager) Revoke(tokenString string) {
	expiry := m.now().Add(m.ttl)
	if claims, err := m.ParseToken(tokenString); err == nil && claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklisted[tokenString] = expiry
	m.purgeLocked()
}

func (m *TokenManager) IsRevoked(tokenString string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expiry, exists := m.blacklisted[tokenString]
	return exists && m.now().Before(expiry)
}

func (m *TokenManager) purgeLocked() {
	now := m.now()
	for token, expiry := range m.blacklisted {
		if now.After(expiry) {
			delete(m.blacklisted, token)
		}
	}
}

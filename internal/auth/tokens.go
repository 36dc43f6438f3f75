package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	issuer     = "saascribe-platform"
	accessTTL  = 1 * time.Hour
	refreshTTL = 7 * 24 * time.Hour

	accessPrefix  = "access:"
	refreshPrefix = "refresh:"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked or expired")
)

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_exp"`
	RefreshExp   time.Time `json:"refresh_exp"`
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 tokens. Every issued JTI is kept in
// Redis for its lifetime so a token can be revoked before it expires.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	rdb           redis.Cmdable
}

func NewTokenManager(accessSecret, refreshSecret string, rdb redis.Cmdable) (*TokenManager, error) {
	if len(accessSecret) < 32 || len(refreshSecret) < 32 {
		return nil, fmt.Errorf("ACCESS_SECRET and REFRESH_SECRET must be configured and at least 32 characters")
	}
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		rdb:           rdb,
	}, nil
}

func (m *TokenManager) IssueTokenPair(ctx context.Context, userID, email string) (*TokenPair, error) {
	now := time.Now()
	accessJTI := uuid.NewString()
	refreshJTI := uuid.NewString()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	accessString, err := sign(m.accessSecret, newClaims(userID, email, accessJTI, now, accessExp))
	if err != nil {
		return nil, err
	}

	refreshString, err := sign(m.refreshSecret, newClaims(userID, email, refreshJTI, now, refreshExp))
	if err != nil {
		return nil, err
	}

	pipe := m.rdb.Pipeline()
	pipe.Set(ctx, accessPrefix+accessJTI, userID, accessTTL)
	pipe.Set(ctx, refreshPrefix+refreshJTI, userID, refreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessString,
		RefreshToken: refreshString,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (m *TokenManager) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	return m.validate(ctx, tokenString, m.accessSecret, accessPrefix)
}

func (m *TokenManager) ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error) {
	return m.validate(ctx, tokenString, m.refreshSecret, refreshPrefix)
}

func (m *TokenManager) RevokeToken(ctx context.Context, jti string, isRefresh bool) error {
	prefix := accessPrefix
	if isRefresh {
		prefix = refreshPrefix
	}
	return m.rdb.Del(ctx, prefix+jti).Err()
}

func (m *TokenManager) validate(ctx context.Context, tokenString string, secret []byte, prefix string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	exists, err := m.rdb.Exists(ctx, prefix+claims.ID).Result()
	if err != nil || exists != 1 {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

func newClaims(userID, email, jti string, now, exp time.Time) Claims {
	return Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
}

func sign(secret []byte, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

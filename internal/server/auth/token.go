// Package auth issues and verifies the signed session tokens and carries the
// authenticated identity through request contexts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/server/config"
	"github.com/dmitrijs2005/accounthub/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims are carried by short-lived access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// RefreshClaims are carried by refresh tokens and identify the user only.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
}

// TokenService signs access and refresh tokens with HS256 using two distinct
// secrets, so one kind of token never verifies as the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           time.Now,
	}
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) IssueAccessToken(user *models.User) (string, error) {
	return s.sign(&AccessClaims{
		RegisteredClaims: s.registered(user.ID, s.accessTTL),
		UserID:           user.ID,
		Email:            user.Email,
		Username:         user.Username,
		FullName:         user.FullName,
	}, s.accessSecret)
}

func (s *TokenService) IssueRefreshToken(user *models.User) (string, error) {
	return s.sign(&RefreshClaims{
		RegisteredClaims: s.registered(user.ID, s.refreshTTL),
		UserID:           user.ID,
	}, s.refreshSecret)
}

func (s *TokenService) VerifyAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.Verify(token, s.accessSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.Verify(token, s.refreshSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// Verify parses token into claims and checks signature, algorithm and expiry.
// Expired tokens yield common.ErrTokenExpired; everything else yields an error
// wrapping common.ErrInvalidToken.
func (s *TokenService) Verify(token string, secret []byte, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !parsed.Valid {
		return common.ErrInvalidToken
	}
	return nil
}

func (s *TokenService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

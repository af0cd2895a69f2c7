package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/qcom/otpauth/internal/config"
	"github.com/qcom/otpauth/internal/models"
	"github.com/sirupsen/logrus"
)

// Claims is the signed token payload. Its shape is closed: identity,
// purpose and the registered claims, nothing else.
type Claims struct {
	Mobile  string              `json:"mobile"`
	Purpose models.TokenPurpose `json:"typ"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	keys          *TokenKeys
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
	logger        *logrus.Logger
	now           func() time.Time
}

func NewTokenIssuer(keys *TokenKeys, cfg *config.JWTConfig, logger *logrus.Logger) *TokenIssuer {
	return &TokenIssuer{
		keys:          keys,
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		issuer:        cfg.Issuer,
		logger:        logger,
		now:           time.Now,
	}
}

// IssuePair mints an access and a refresh token for claim. Every token gets
// a fresh jti, so two pairs minted in the same second still differ.
func (s *TokenIssuer) IssuePair(claim models.IdentityClaim) (*models.TokenPair, error) {
	if claim.Subject == "" || claim.Mobile == "" {
		return nil, fmt.Errorf("identity claim is incomplete")
	}

	now := s.now()

	accessToken, accessExpiresAt, err := s.sign(claim, models.PurposeAccess, s.accessExpiry, now)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign access token")
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, refreshExpiresAt, err := s.sign(claim, models.PurposeRefresh, s.refreshExpiry, now)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign refresh token")
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.accessExpiry.Seconds()),
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func (s *TokenIssuer) sign(claim models.IdentityClaim, purpose models.TokenPurpose, ttl time.Duration, now time.Time) (string, time.Time, error) {
	keyring, err := s.keys.forPurpose(purpose)
	if err != nil {
		return "", time.Time{}, err
	}

	claims := &Claims{
		Mobile:  claim.Mobile,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   claim.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = keyring.current.id

	signed, err := token.SignedString(keyring.current.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, claims.ExpiresAt.Time, nil
}

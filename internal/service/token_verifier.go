package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/qcom/otpauth/internal/config"
	"github.com/qcom/otpauth/internal/models"
)

type TokenVerifier struct {
	keys   *TokenKeys
	issuer string
	now    func() time.Time
}

func NewTokenVerifier(keys *TokenKeys, cfg *config.JWTConfig) *TokenVerifier {
	return &TokenVerifier{
		keys:   keys,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Verify checks tokenString against the keyring for purpose and returns the
// embedded identity. Failures wrap one of the models.ErrToken* sentinels.
func (v *TokenVerifier) Verify(tokenString string, purpose models.TokenPurpose) (*models.IdentityClaim, error) {
	if tokenString == "" {
		return nil, models.ErrTokenMissing
	}

	keyring, err := v.keys.forPurpose(purpose)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		secret, ok := keyring.lookup(kid)
		if !ok {
			return nil, fmt.Errorf("%w: unknown key id %q", models.ErrTokenBadSignature, kid)
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: got %q, want %q", models.ErrTokenWrongPurpose, claims.Purpose, purpose)
	}
	if claims.Subject == "" || claims.Mobile == "" {
		return nil, fmt.Errorf("%w: identity claim is incomplete", models.ErrTokenMalformed)
	}

	return &models.IdentityClaim{
		Subject: claims.Subject,
		Mobile:  claims.Mobile,
	}, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, models.ErrTokenBadSignature):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", models.ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", models.ErrTokenMalformed, err)
	}
}

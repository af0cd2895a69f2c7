package service

import (
	"context"
	"fmt"

	"github.com/qcom/otpauth/internal/models"
	"github.com/sirupsen/logrus"
)

// UserDirectory maps a verified mobile number onto a stable user.
type UserDirectory interface {
	ResolveOrCreate(ctx context.Context, mobile string) (*models.User, error)
}

type AuthResult struct {
	User   *models.User
	Tokens *models.TokenPair
}

// AuthService runs the OTP login and token refresh flows. Every
// authentication failure reaches the caller as models.ErrUnauthorized; the
// actual reason only goes to the log.
type AuthService struct {
	otpService *OTPService
	issuer     *TokenIssuer
	verifier   *TokenVerifier
	users      UserDirectory
	logger     *logrus.Logger
}

func NewAuthService(
	otpService *OTPService,
	issuer *TokenIssuer,
	verifier *TokenVerifier,
	users UserDirectory,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		otpService: otpService,
		issuer:     issuer,
		verifier:   verifier,
		users:      users,
		logger:     logger,
	}
}

func (s *AuthService) RequestOTP(ctx context.Context, mobile string) (*models.OTPIssued, error) {
	issued, err := s.otpService.Issue(ctx, mobile)
	if err != nil {
		s.logger.WithError(err).WithField("mobile", mobile).Error("Failed to issue OTP")
		return nil, fmt.Errorf("failed to issue OTP: %w", err)
	}

	s.logger.WithField("mobile", mobile).Info("OTP issued")
	return issued, nil
}

func (s *AuthService) VerifyOTP(ctx context.Context, mobile, code string) (*AuthResult, error) {
	if err := s.otpService.VerifyAndConsume(ctx, mobile, code); err != nil {
		if models.IsOTPFailure(err) {
			s.logger.WithError(err).WithField("mobile", mobile).Warn("OTP verification failed")
			return nil, models.ErrUnauthorized
		}
		s.logger.WithError(err).WithField("mobile", mobile).Error("Failed to verify OTP")
		return nil, fmt.Errorf("failed to verify OTP: %w", err)
	}

	user, err := s.users.ResolveOrCreate(ctx, mobile)
	if err != nil {
		s.logger.WithError(err).WithField("mobile", mobile).Error("Failed to resolve user")
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	tokens, err := s.issuer.IssuePair(models.IdentityClaim{
		Subject: user.ID,
		Mobile:  user.Mobile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"mobile":  user.Mobile,
	}).Info("User logged in")

	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh exchanges a valid refresh token for a new pair carrying the same
// identity. The presented token stays valid until it expires.
func (s *AuthService) Refresh(_ context.Context, refreshToken string) (*models.TokenPair, error) {
	claim, err := s.verifier.Verify(refreshToken, models.PurposeRefresh)
	if err != nil {
		if models.IsTokenFailure(err) {
			s.logger.WithError(err).Warn("Refresh token rejected")
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to verify refresh token: %w", err)
	}

	tokens, err := s.issuer.IssuePair(*claim)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	s.logger.WithField("user_id", claim.Subject).Info("Tokens refreshed")
	return tokens, nil
}

// Authenticate verifies an access token and returns its identity.
func (s *AuthService) Authenticate(accessToken string) (*models.IdentityClaim, error) {
	claim, err := s.verifier.Verify(accessToken, models.PurposeAccess)
	if err != nil {
		if models.IsTokenFailure(err) {
			s.logger.WithError(err).Debug("Access token rejected")
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to verify access token: %w", err)
	}
	return claim, nil
}

// Logout has nothing to revoke; tokens are stateless. The access token, when
// present and valid, only identifies the user in the log.
func (s *AuthService) Logout(_ context.Context, accessToken string) {
	entry := s.logger.WithField("user_id", "")
	if accessToken != "" {
		if claim, err := s.verifier.Verify(accessToken, models.PurposeAccess); err == nil {
			entry = s.logger.WithField("user_id", claim.Subject)
		}
	}
	entry.Info("User logged out")
}

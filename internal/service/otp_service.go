package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/qcom/otpauth/internal/config"
	"github.com/qcom/otpauth/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// OTPStore keeps one pending code per mobile number. Consume must run the
// check and the delete as one atomic step.
type OTPStore interface {
	Save(ctx context.Context, otpData models.OTPData) error
	Consume(ctx context.Context, mobile string, check models.OTPCheck) error
}

type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCodeGenerator draws numeric codes from crypto/rand.
type RandomCodeGenerator struct {
	Length int
}

func (g RandomCodeGenerator) Generate() (string, error) {
	otp := make([]byte, g.Length)
	for i := range otp {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		otp[i] = byte('0' + num.Int64())
	}
	return string(otp), nil
}

// FixedCodeGenerator always hands out the same code. Development only.
type FixedCodeGenerator struct {
	Code string
}

func (g FixedCodeGenerator) Generate() (string, error) {
	return g.Code, nil
}

// Sender delivers a freshly issued code to the mobile number.
type Sender interface {
	Send(ctx context.Context, mobile, code string) error
}

// LogSender stands in for an SMS gateway by logging the code.
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, mobile, code string) error {
	s.logger.WithFields(logrus.Fields{
		"mobile": mobile,
		"otp":    code,
	}).Info("OTP generated (logged for development)")
	return nil
}

type OTPService struct {
	store     OTPStore
	generator CodeGenerator
	sender    Sender
	cfg       *config.OTPConfig
	logger    *logrus.Logger
	now       func() time.Time
}

func NewOTPService(store OTPStore, generator CodeGenerator, sender Sender, cfg *config.OTPConfig, logger *logrus.Logger) *OTPService {
	return &OTPService{
		store:     store,
		generator: generator,
		sender:    sender,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Issue generates a code for mobile, replacing any pending one, and hands
// it to the sender. The receipt never carries the code.
func (s *OTPService) Issue(ctx context.Context, mobile string) (*models.OTPIssued, error) {
	otp, err := s.generator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	hashedOTP, err := bcrypt.GenerateFromPassword([]byte(otp), s.hashCost())
	if err != nil {
		return nil, fmt.Errorf("failed to hash OTP: %w", err)
	}

	now := s.now()
	otpData := models.OTPData{
		OTPHash:   string(hashedOTP),
		Mobile:    mobile,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Expiry),
	}

	if err := s.store.Save(ctx, otpData); err != nil {
		return nil, err
	}

	if err := s.sender.Send(ctx, mobile, otp); err != nil {
		s.logger.WithError(err).WithField("mobile", mobile).Error("Failed to deliver OTP")
		return nil, fmt.Errorf("failed to deliver OTP: %w", err)
	}

	return &models.OTPIssued{
		Mobile:    mobile,
		ExpiresAt: otpData.ExpiresAt,
	}, nil
}

// VerifyAndConsume checks code against the pending record for mobile and
// consumes it on success. A mismatch leaves the code usable until the
// attempt limit is reached.
func (s *OTPService) VerifyAndConsume(ctx context.Context, mobile, code string) error {
	now := s.now()

	return s.store.Consume(ctx, mobile, func(otpData models.OTPData) error {
		if otpData.Attempts >= s.cfg.MaxAttempts {
			return models.ErrOTPAttemptsExceeded
		}
		if now.After(otpData.ExpiresAt) {
			return models.ErrOTPExpired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(otpData.OTPHash), []byte(code)); err != nil {
			return models.ErrOTPMismatch
		}
		return nil
	})
}

func (s *OTPService) hashCost() int {
	if s.cfg.HashCost < bcrypt.MinCost {
		return bcrypt.DefaultCost
	}
	return s.cfg.HashCost
}

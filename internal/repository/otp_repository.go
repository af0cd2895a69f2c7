package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qcom/otpauth/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	otpKeyFormat = "otp:%s"

	// Records outlive their expiry a little so a late attempt reports
	// expired instead of not found.
	otpExpiryGrace = time.Minute

	otpConsumeBackoff    = 2 * time.Millisecond
	otpConsumeMaxBackoff = 50 * time.Millisecond
)

type RedisOTPStore struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisOTPStore(client *redis.Client, logger *logrus.Logger) *RedisOTPStore {
	return &RedisOTPStore{
		client: client,
		logger: logger,
	}
}

// Save stores OTP data, replacing any code already pending for the mobile number.
func (s *RedisOTPStore) Save(ctx context.Context, otpData models.OTPData) error {
	dataJSON, err := json.Marshal(otpData)
	if err != nil {
		return fmt.Errorf("failed to marshal OTP data: %w", err)
	}

	ttl := time.Until(otpData.ExpiresAt) + otpExpiryGrace
	if ttl < otpExpiryGrace {
		ttl = otpExpiryGrace
	}

	if err := s.client.Set(ctx, otpKey(otpData.Mobile), dataJSON, ttl).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to store OTP in Redis")
		return fmt.Errorf("failed to store OTP: %w", err)
	}

	return nil
}

// Consume runs check against the pending record and deletes it on success,
// all under WATCH so two callers can never both succeed on one code. A
// mismatch only bumps the attempt counter; any other check failure drops
// the record. A lost WATCH race is retried until ctx is done, so every
// concurrent caller's attempt is counted.
func (s *RedisOTPStore) Consume(ctx context.Context, mobile string, check models.OTPCheck) error {
	key := otpKey(mobile)

	var checkErr error
	txf := func(tx *redis.Tx) error {
		checkErr = nil

		dataJSON, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return models.ErrOTPNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get OTP: %w", err)
		}

		var otpData models.OTPData
		if err := json.Unmarshal([]byte(dataJSON), &otpData); err != nil {
			return fmt.Errorf("failed to unmarshal OTP data: %w", err)
		}

		checkErr = check(otpData)

		var updatedJSON []byte
		if errors.Is(checkErr, models.ErrOTPMismatch) {
			otpData.Attempts++
			if updatedJSON, err = json.Marshal(otpData); err != nil {
				return fmt.Errorf("failed to marshal OTP data: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if updatedJSON != nil {
				pipe.Set(ctx, key, updatedJSON, redis.KeepTTL)
				return nil
			}
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}

	backoff := otpConsumeBackoff
	for attempt := 1; ; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			if err != nil {
				return err
			}
			return checkErr
		}

		s.logger.WithField("attempt", attempt).Debug("OTP record changed during consume, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to consume OTP: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < otpConsumeMaxBackoff {
			backoff *= 2
		}
	}
}

func otpKey(mobile string) string {
	return fmt.Sprintf(otpKeyFormat, mobile)
}

package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/qcom/otpauth/internal/models"
)

// MemoryOTPStore keeps pending codes in process memory. It is meant for
// single-instance development setups and tests.
type MemoryOTPStore struct {
	mu      sync.Mutex
	records map[string]models.OTPData
	now     func() time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{
		records: make(map[string]models.OTPData),
		now:     time.Now,
	}
}

// Save stores otpData and drops records that are past expiry and grace, the
// same window after which Redis evicts them.
func (s *MemoryOTPStore) Save(_ context.Context, otpData models.OTPData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-otpExpiryGrace)
	for mobile, record := range s.records {
		if record.ExpiresAt.Before(cutoff) {
			delete(s.records, mobile)
		}
	}

	s.records[otpData.Mobile] = otpData
	return nil
}

// Consume has the same contract as RedisOTPStore.Consume; check runs with
// the store lock held.
func (s *MemoryOTPStore) Consume(_ context.Context, mobile string, check models.OTPCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	otpData, ok := s.records[mobile]
	if !ok {
		return models.ErrOTPNotFound
	}

	err := check(otpData)
	switch {
	case err == nil:
		delete(s.records, mobile)
	case errors.Is(err, models.ErrOTPMismatch):
		otpData.Attempts++
		s.records[mobile] = otpData
	default:
		delete(s.records, mobile)
	}

	return err
}

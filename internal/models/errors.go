package models

import "errors"

var (
	ErrOTPNotFound         = errors.New("otp not found")
	ErrOTPExpired          = errors.New("otp expired")
	ErrOTPMismatch         = errors.New("otp mismatch")
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
)

var (
	ErrTokenMissing      = errors.New("token missing")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenWrongPurpose = errors.New("token purpose mismatch")
)

// ErrUnauthorized is the only authentication failure callers ever see.
var ErrUnauthorized = errors.New("unauthorized")

var (
	ErrNotFound   = errors.New("not found")
	ErrUserExists = errors.New("user already exists")
)

// IsOTPFailure reports whether err is one of the OTP verification failures.
func IsOTPFailure(err error) bool {
	return errors.Is(err, ErrOTPNotFound) ||
		errors.Is(err, ErrOTPExpired) ||
		errors.Is(err, ErrOTPMismatch) ||
		errors.Is(err, ErrOTPAttemptsExceeded)
}

// IsTokenFailure reports whether err is one of the token verification failures.
func IsTokenFailure(err error) bool {
	return errors.Is(err, ErrTokenMissing) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenBadSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenWrongPurpose)
}

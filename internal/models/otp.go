package models

import "time"

// OTPData is the pending one-time code for a mobile number. Only the bcrypt
// hash of the code is kept.
type OTPData struct {
	OTPHash   string    `json:"otp_hash"`
	Mobile    string    `json:"mobile"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPIssued is the receipt returned when a code is issued.
type OTPIssued struct {
	Mobile    string    `json:"mobile"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPCheck inspects a pending record inside a store's atomic consume step.
type OTPCheck func(OTPData) error

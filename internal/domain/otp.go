package domain

import "time"

// Purpose - the flow an OTP was issued for
type Purpose string

const (
	PurposeLogin         Purpose = "login"
	PurposeRegister      Purpose = "register"
	PurposeResetPassword Purpose = "reset_password"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeRegister, PurposeResetPassword:
		return true
	}
	return false
}

// OTPRecord - an issued one-time passcode
type OTPRecord struct {
	ID         string
	EntityID   string
	EntityType EntityType
	Code       string
	Purpose    Purpose
	ExpiresAt  time.Time
	Attempts   int
	CreatedAt  time.Time
}

// Expired reports whether the record is past its expiry at now.
func (o *OTPRecord) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

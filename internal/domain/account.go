package domain

import "time"

// Account - a registered user of the service
type Account struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EntityType tags the owner of an OTP record.
type EntityType string

// EntityAccount is the only owner kind issued today.
const EntityAccount EntityType = "Admin"

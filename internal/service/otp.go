package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeGenerator produces the numeric codes sent to users.
type CodeGenerator interface {
	Generate() (string, error)
}

// RandomCode generates fixed-length numeric codes from crypto/rand.
type RandomCode struct {
	Length int
}

func (g RandomCode) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = 6
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// StaticCode always returns the same code. Development and tests only.
type StaticCode string

func (c StaticCode) Generate() (string, error) {
	return string(c), nil
}

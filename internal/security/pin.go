package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// PINLength is the number of decimal digits in an operator PIN.
const PINLength = 6

var ErrPINFormat = errors.New("PIN must be exactly 6 digits")

// ValidatePIN accepts exactly six ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) != PINLength {
		return ErrPINFormat
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrPINFormat
		}
	}
	return nil
}

var pinSpace = big.NewInt(1_000_000)

// GeneratePIN draws a uniformly random 6-digit PIN (leading zeros allowed).
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Package otp generates the one-time passcodes delivered by email.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

// Digits is the fixed passcode length.
const Digits = 6

const (
	codeMin  = 100000
	codeSpan = 900000 // [100000, 999999], uniform
)

// New draws a 6-digit passcode from crypto/rand. The range is the full
// symmetric six-digit space: 900000 equally likely values, which holds up
// against a three-attempt guessing budget. An entropy failure is fatal to
// the caller; there is nothing to retry.
func New() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("read otp entropy: %w", err)
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Access codes are nine-digit numbers. Generation samples uniformly over the
// whole nine-digit range so a leading zero can never appear.
const (
	AccessCodeLength = 9
	accessCodeMin    = 100000000
	accessCodeMax    = 999999999
)

var accessCodeSpan = big.NewInt(accessCodeMax - accessCodeMin + 1)

// GenerateAccessCode returns a random nine-digit code.
func GenerateAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, accessCodeSpan)
	if err != nil {
		return "", err
	}
	return big.NewInt(0).Add(n, big.NewInt(accessCodeMin)).String(), nil
}

// SanitizeAccessCode strips every non-digit from code. It returns "" unless
// exactly nine digits remain.
func SanitizeAccessCode(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() != AccessCodeLength {
		return ""
	}
	return b.String()
}

// NormalizeAppKey lower-cases and trims key, collapses every run of
// characters outside [a-z0-9_-] into a single '-', and strips leading and
// trailing dashes.
func NormalizeAppKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	var b strings.Builder
	inRun := false
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('-')
			inRun = true
		}
	}
	return strings.Trim(b.String(), "-")
}

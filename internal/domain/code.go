// Package domain code.go contains functions to generate and normalize share codes
package domain

import (
	"crypto/rand"
	"strings"
)

const (
	// codeAlphabet is the character set for share codes: uppercase
	// alphanumeric, 36 symbols, human-typable.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// GeneratedCodeLength is the length of generated codes. 36^8 keyspace
	// makes accidental collision negligible at expected record volumes.
	GeneratedCodeLength = 8

	// MaxCustomCodeLength bounds caller-supplied codes.
	MaxCustomCodeLength = 20
)

// NewShareCode generates a cryptographically random 8-character uppercase
// alphanumeric share code.
func NewShareCode() (string, error) {
	var b [GeneratedCodeLength]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b[:]), nil
}

// NormalizeCustomCode canonicalizes a caller-supplied share code: uppercase,
// strip any character outside [A-Z0-9], truncate to MaxCustomCodeLength.
// Returns ErrInvalidCode if nothing survives normalization.
func NormalizeCustomCode(candidate string) (string, error) {
	upper := strings.ToUpper(candidate)
	var sb strings.Builder
	for i := 0; i < len(upper); i++ {
		c := upper[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			continue
		}
		sb.WriteByte(c)
		if sb.Len() == MaxCustomCodeLength {
			break
		}
	}
	if sb.Len() == 0 {
		return "", ErrInvalidCode
	}
	return sb.String(), nil
}

// NormalizeLookupCode uppercases a redemption code without stripping; lookups
// are case-insensitive but otherwise exact.
func NormalizeLookupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether s is a well-formed share code (1..20 chars of
// [A-Z0-9]).
func ValidCode(s string) bool {
	if len(s) == 0 || len(s) > MaxCustomCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

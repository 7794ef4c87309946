// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers. Each redemption or
// creation failure maps to exactly one of these so callers can render a
// distinct message without string matching.
var (
	ErrNotFound           = errors.New("share not found")
	ErrExpired            = errors.New("share expired")
	ErrQuotaExhausted     = errors.New("download limit reached")
	ErrPasswordRequired   = errors.New("password required")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrDuplicateCode      = errors.New("share code already in use")
	ErrCodeSpaceExhausted = errors.New("share code generation retries exhausted")
	ErrCorruptPayload     = errors.New("corrupt payload")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrFileTooLarge       = errors.New("file too large")
	ErrInvalidCode        = errors.New("invalid share code")
	ErrExpiryInvalid      = errors.New("expiry invalid")
)

// Package errs defines the error taxonomy shared by every component.
// Leaves return typed errors; the HTTP adapter is the only place that
// maps kinds to status codes.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and retry decisions.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindAntiCheat
	KindPersistence
)

// Machine-readable reason codes surfaced to clients.
const (
	CodeSafeZone        = "SAFE_ZONE"
	CodeOutOfRange      = "OUT_OF_RANGE"
	CodeTargetMismatch  = "TARGET_MISMATCH"
	CodeStaleLocation   = "STALE_LOCATION"
	CodeEmergencyPaused = "EMERGENCY_PAUSED"
	CodeTeleport        = "TELEPORT"
	CodeInvalidGeometry = "INVALID_GEOMETRY"
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeWrongStatus     = "WRONG_STATUS"
	CodeNotAdmin        = "NOT_ADMIN"
	CodeNotOwner        = "NOT_OWNER"
	CodeCooldown        = "COOLDOWN"
	CodeAntiCheatScore  = "ANTI_CHEAT_SCORE"
	CodeDeadKiller      = "DEAD_KILLER"
)

// Error carries a kind, a machine-readable code, and a human message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an error of the given kind.
func E(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a 400-class input error.
func Validation(code, format string, args ...any) *Error {
	return E(KindValidation, code, format, args...)
}

// Unauthorized builds a 403-class error.
func Unauthorized(code, format string, args ...any) *Error {
	return E(KindUnauthorized, code, format, args...)
}

// NotFound builds a 404-class error.
func NotFound(format string, args ...any) *Error {
	return E(KindNotFound, "NOT_FOUND", format, args...)
}

// Conflict builds a 409-class game-state or concurrency error.
func Conflict(code, format string, args ...any) *Error {
	return E(KindConflict, code, format, args...)
}

// AntiCheat builds a 400-class anti-cheat rejection.
func AntiCheat(code, format string, args ...any) *Error {
	return E(KindAntiCheat, code, format, args...)
}

// Persistence wraps a transient backend failure (retriable).
func Persistence(err error, format string, args ...any) *Error {
	return &Error{Kind: KindPersistence, Code: "PERSISTENCE", Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf extracts the machine-readable code from err, if any.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// Retriable reports whether the operation may be retried as-is.
// Persistence failures are retriable; conflicts require a re-read first.
func Retriable(err error) bool {
	return KindOf(err) == KindPersistence
}

// IsConflict reports whether err is an optimistic-concurrency or
// game-state conflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

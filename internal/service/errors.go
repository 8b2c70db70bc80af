package service

import (
	"errors"
	"strings"
)

// Error kinds returned by the service layer. Handlers map them onto HTTP
// statuses with errors.Is. Authentication failures are answered
// generically; only ErrForbidden, ErrNotFound and ErrBadRequest expose
// their detail to the caller (see Detail).
var (
	ErrCredentialInvalid = errors.New("invalid credentials")
	ErrAccountNotActive  = errors.New("account is suspended or inactive")

	ErrHandshakeInvalid = errors.New("invalid or expired handshake token")
	ErrHandshakeMissing = errors.New("handshake token expired or already used")
	ErrHandshakeReused  = errors.New("handshake token already consumed")
	ErrHandshakeExpired = errors.New("handshake token expired")

	ErrSessionInvalid       = errors.New("invalid session token")
	ErrSessionRecordMissing = errors.New("session not recognized")
	ErrSessionRevoked       = errors.New("session revoked")
	ErrSessionExpired       = errors.New("session expired")

	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
)

// IsUnauthenticated reports whether err means the caller has no usable
// credentials or session.
func IsUnauthenticated(err error) bool {
	for _, target := range []error{
		ErrCredentialInvalid, ErrAccountNotActive,
		ErrSessionInvalid, ErrSessionRecordMissing, ErrSessionRevoked, ErrSessionExpired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsHandshakeFailure reports whether err came from a rejected handshake
// exchange.
func IsHandshakeFailure(err error) bool {
	return errors.Is(err, ErrHandshakeInvalid) || errors.Is(err, ErrHandshakeMissing) ||
		errors.Is(err, ErrHandshakeReused) || errors.Is(err, ErrHandshakeExpired)
}

// Detail returns the caller-facing message of a forbidden, not found or
// bad request error: the text wrapped after the sentinel, capitalized. It
// falls back to the sentinel text and returns "" for other errors.
func Detail(err error) string {
	for _, target := range []error{ErrBadRequest, ErrNotFound, ErrForbidden} {
		if !errors.Is(err, target) {
			continue
		}
		msg := err.Error()
		prefix := target.Error() + ": "
		if i := strings.Index(msg, prefix); i >= 0 && len(msg) > i+len(prefix) {
			msg = msg[i+len(prefix):]
		} else {
			msg = target.Error()
		}
		return strings.ToUpper(msg[:1]) + msg[1:]
	}
	return ""
}

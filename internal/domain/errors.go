package domain

import "errors"

var (
	// ErrNetwork marks an unreachable endpoint or a non-2xx response.
	ErrNetwork = errors.New("network error")
	// ErrDecode marks malformed block, program or address bytes.
	ErrDecode = errors.New("decode error")
	// ErrVerificationRejected is a negative verification result, not a failure.
	ErrVerificationRejected = errors.New("verification rejected")
)

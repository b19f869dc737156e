// Package common defines shared constants and sentinel errors used across
// the server and the CLI client. Callers should use errors.Is to match these
// values; lower layers wrap them with fmt.Errorf("...: %w", err).
package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound         = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStorage            = errors.New("storage error")
	ErrCorruptState       = errors.New("corrupt state")

	// Gateway / service-level errors.
	ErrBadRequest = errors.New("bad request")
	ErrorInternal = errors.New("internal error")
	ErrNoBucket   = errors.New("risk bucket not computed")

	// Advisor (external risk service) errors.
	ErrUpstream = errors.New("upstream service error")
)

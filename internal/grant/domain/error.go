package domain

import "errors"

var (
	ErrInvalidRequest        = errors.New("invalid_request")
	ErrInvalidGrant          = errors.New("invalid_grant")
	ErrInvalidScope          = errors.New("invalid_scope")
	ErrUnsupportedGrant      = errors.New("unsupported_grant_type")
	ErrConsentRequired       = errors.New("consent_required")
	ErrProofKeyRequired      = errors.New("proof_key_required")
	ErrReplayDetected        = errors.New("replay_detected")
	ErrAuthorizationNotFound = errors.New("authorization_not_found")
)

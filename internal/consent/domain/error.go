package domain

import "errors"

var (
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrConsentNotFound = errors.New("consent_not_found")
)

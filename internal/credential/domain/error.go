package domain

import "errors"

var (
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrNotFound        = errors.New("credential_not_found")
	ErrBadPassword     = errors.New("bad_password")
	ErrAccountLocked   = errors.New("account_locked")
	ErrAccountDisabled = errors.New("account_disabled")
	ErrTokenInvalid    = errors.New("recovery_token_invalid")
)

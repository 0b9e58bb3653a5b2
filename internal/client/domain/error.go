package domain

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrClientNotFound = errors.New("client_not_found")
	ErrClientExists   = errors.New("client_already_exists")
	ErrInvalidClient  = errors.New("invalid_client")
)

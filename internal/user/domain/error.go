package domain

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrUserNotFound   = errors.New("user_not_found")
	ErrUserExists     = errors.New("user_already_exists")
)

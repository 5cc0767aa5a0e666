package auth

import "errors"

var (
	ErrInvalidToken          = errors.New("invalid or expired token")
	ErrManagerAccessRequired = errors.New("manager or owner role required")
)

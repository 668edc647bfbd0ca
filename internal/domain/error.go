package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrFieldNotUpdatable  = errors.New("field is not updatable")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrRateLimited        = errors.New("rate limited")
)

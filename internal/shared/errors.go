package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the caller lacks the role required for an operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrLastManager occurs when a change would leave the project without any manager.
	ErrLastManager = errors.New("cannot remove the last manager")
	// ErrInvalidRole occurs when a role name is not reader, contributor or manager.
	ErrInvalidRole = errors.New("invalid role name")
	// ErrStoreUnavailable indicates a settings store read or write failed.
	ErrStoreUnavailable = errors.New("settings store unavailable")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

package consts

import "github.com/pkg/errors"

var (
	// ErrMalformedRequest is the general request error for invalid inputs that dont fall under other categories
	ErrMalformedRequest = errors.New("Malformed request")
	// ErrDuplicate duplicate entry error
	ErrDuplicate = errors.New("Duplicate entry")
	// ErrInvalidUser is returned when a uid does not map to a registered user
	ErrInvalidUser = errors.New("Unknown user")
	// ErrInvalidInfoHash returned on unknown or malformed info hashes
	ErrInvalidInfoHash = errors.New("Invalid info hash")
	// ErrInvalidDriver is for when a unknown driver is used.
	// Either misspelled or using driver that wasn't built into the binary
	ErrInvalidDriver = errors.New("invalid driver")
	// ErrInvalidConfig is issued when a invalid config value is used
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrBadResponseCode is a generic error representing a non-2xx response
	// received from the upstream tracker engine
	ErrBadResponseCode = errors.New("invalid response code")
	// ErrUnauthorized is a general non-info disclosing auth error
	ErrUnauthorized = errors.New("not authorized")
)

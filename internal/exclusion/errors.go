package exclusion

import "errors"

var (
	// ErrValidation is returned for malformed administrative input. The
	// store is left unchanged.
	ErrValidation = errors.New("invalid exclusion rule")

	// ErrNotFound is returned when a removal references an index that does
	// not exist. The store is left unchanged.
	ErrNotFound = errors.New("exclusion rule not found")
)

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

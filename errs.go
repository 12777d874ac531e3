package store

import (
	"errors"
	"fmt"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrKeyNotFound      = errors.New("key not found")
	ErrNoRow            = errors.New("no row")

	// ErrSuppressed is returned when an around hook never performed the
	// write. Nothing reached the store and no did hook ran.
	ErrSuppressed = errors.New("operation suppressed by around hook")

	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
)

// ConfigurationError reports a statement or record setup that can never
// succeed. It is always raised before the store is touched.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ErrorKind is the driver-independent classification of a store failure.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindConstraintViolation
	KindConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindConstraintViolation:
		return "constraint violation"
	case KindConnection:
		return "connection error"
	default:
		return "store error"
	}
}

// StoreError wraps an error returned by the driver together with the
// statement that produced it.
type StoreError struct {
	Kind  ErrorKind
	Query string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets constraint violations match ErrKeyAlreadyExists.
func (e *StoreError) Is(target error) bool {
	return target == ErrKeyAlreadyExists && e.Kind == KindConstraintViolation
}

// IsConstraintViolation reports whether err was classified as a constraint
// violation by the store.
func IsConstraintViolation(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindConstraintViolation
}

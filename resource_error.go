package resourcefactory

import (
	stderrors "errors"
	"fmt"

	"github.com/c360/resourcefactory/errors"
)

// sentinel errors one per FactoryResult/ReloadResult so callers can use
// errors.Is without depending on the numeric code.
var (
	ErrInval                 = stderrors.New("invalid argument")
	ErrAlreadyRegistered     = stderrors.New("extension already registered")
	ErrOutOfResources        = stderrors.New("registry or subscriber list is full")
	ErrResourceNotFound      = stderrors.New("resource not found")
	ErrMissingFileExtension  = stderrors.New("missing file extension")
	ErrUnknownResourceType   = stderrors.New("unknown resource type")
	ErrIO                    = stderrors.New("io error")
	ErrStreamBufferTooSmall  = stderrors.New("staging buffer too small")
	ErrNotLoaded             = stderrors.New("not loaded")
	ErrPathTooLong           = stderrors.New("canonical path too long")
	ErrUnknown               = stderrors.New("unknown error")
	ErrNotSupported          = stderrors.New("reload not supported")
)

// sentinelFor maps a FactoryResult to its sentinel error. OK maps to nil.
func sentinelFor(r FactoryResult) error {
	switch r {
	case OK:
		return nil
	case INVAL:
		return ErrInval
	case AlreadyRegistered:
		return ErrAlreadyRegistered
	case OutOfResources:
		return ErrOutOfResources
	case ResourceNotFound:
		return ErrResourceNotFound
	case MissingFileExtension:
		return ErrMissingFileExtension
	case UnknownResourceType:
		return ErrUnknownResourceType
	case IOError:
		return ErrIO
	case StreamBufferTooSmall:
		return ErrStreamBufferTooSmall
	case NotLoaded:
		return ErrNotLoaded
	case PathTooLong:
		return ErrPathTooLong
	default:
		return ErrUnknown
	}
}

// reloadSentinelFor maps a ReloadResult to its sentinel error. ReloadOK maps to nil.
func reloadSentinelFor(r ReloadResult) error {
	switch r {
	case ReloadOK:
		return nil
	case ReloadOutOfMemory:
		return errors.ErrResourceExhausted
	case ReloadFormatError:
		return errors.ErrInvalidData
	case ReloadConstantError:
		return errors.ErrInvalidData
	case ReloadNotFound:
		return ErrResourceNotFound
	case ReloadLoadError:
		return ErrIO
	case ReloadNotSupported:
		return ErrNotSupported
	default:
		return ErrUnknown
	}
}

// ResourceError wraps a FactoryResult or ReloadResult with the component and
// operation it originated from, in the shape of errors.ClassifiedError. It
// satisfies the error interface and unwraps to a stable sentinel so callers
// can branch with errors.Is instead of comparing result codes.
type ResourceError struct {
	Result    fmt.Stringer
	Class     errors.ErrorClass
	Component string
	Operation string
	sentinel  error
}

// Error implements the error interface.
func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Operation, e.Result)
}

// Unwrap returns the sentinel error for the wrapped result, so
// errors.Is(err, resourcefactory.ErrResourceNotFound) works across the
// whole call stack.
func (e *ResourceError) Unwrap() error {
	return e.sentinel
}

// newFactoryError wraps a non-OK FactoryResult as a *ResourceError, or
// returns nil for OK.
func newFactoryError(result FactoryResult, component, operation string) error {
	if result == OK {
		return nil
	}
	class := errors.ErrorInvalid
	switch result {
	case IOError, ResourceNotFound, StreamBufferTooSmall:
		class = errors.ErrorTransient
	case OutOfResources, Unknown, PathTooLong:
		class = errors.ErrorFatal
	}
	return &ResourceError{
		Result:    result,
		Class:     class,
		Component: component,
		Operation: operation,
		sentinel:  sentinelFor(result),
	}
}

// newReloadError wraps a non-OK ReloadResult as a *ResourceError, or returns
// nil for ReloadOK.
func newReloadError(result ReloadResult, component, operation string) error {
	if result == ReloadOK {
		return nil
	}
	class := errors.ErrorInvalid
	switch result {
	case ReloadLoadError:
		class = errors.ErrorTransient
	case ReloadOutOfMemory, ReloadUnknown:
		class = errors.ErrorFatal
	}
	return &ResourceError{
		Result:    result,
		Class:     class,
		Component: component,
		Operation: operation,
		sentinel:  reloadSentinelFor(result),
	}
}

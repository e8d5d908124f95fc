// Package errors provides standardized error handling patterns for resourcefactory
// components.
//
// # Overview
//
// The package implements a three-class error classification system: Transient
// (temporary, retryable by the caller), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing). This classification lets callers make
// informed decisions without string-matching error messages.
//
// # Quick start
//
//	if _, err := factory.Get(ctx, name); err != nil {
//	    if errors.IsFatal(err) {
//	        log.Fatalf("unrecoverable: %v", err)
//	    }
//	}
//
// # Error wrapping pattern
//
// All wrapping follows "component.method: action failed: %w", via WrapTransient,
// WrapInvalid, and WrapFatal. Classification survives error chains and is
// inspectable with errors.As into a *ClassifiedError.
package errors

// Package types holds the error taxonomy and small value types shared across
// component boundaries, per the core's result-variant error handling design.
package types

import "fmt"

// Kind classifies a failure the way the Orchestrator needs to react to it.
type Kind string

const (
	KindTransient           Kind = "transient"
	KindPermanent           Kind = "permanent"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindInternalBug         Kind = "internal_bug"
	KindTimeout             Kind = "timeout"
	KindRateLimited         Kind = "rate_limited"
)

// Error wraps an underlying error with a stable Kind so callers can branch on
// category without sniffing error strings or HTTP status codes.
type Error struct {
	Kind Kind
	Op   string // component/operation that produced the error, e.g. "diff_fetch"
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified Error.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Transient(op string, err error) error { return New(KindTransient, op, err) }
func Permanent(op string, err error) error { return New(KindPermanent, op, err) }
func Timeout(op string, err error) error   { return New(KindTimeout, op, err) }
func Internal(op string, err error) error  { return New(KindInternalBug, op, err) }
func ProviderUnavailable(op string, err error) error {
	return New(KindProviderUnavailable, op, err)
}
func RateLimited(op string, err error) error { return New(KindRateLimited, op, err) }

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns KindInternalBug as the conservative default.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return KindInternalBug
}

// asError walks err's single-error Unwrap chain looking for an *Error. It
// does not descend into errors that wrap several errors at once
// (Unwrap() []error).
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

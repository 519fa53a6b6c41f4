package services

import "fmt"

// ErrorKind classifies a service failure so transports can map it to a
// response code without string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// Error is the only error type services return to callers. Wrapped causes
// stay reachable through Unwrap for logging.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Persistence(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindPersistence, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from any error, walking wrap chains.
func KindOf(err error) ErrorKind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindUnknown
		}
		err = u.Unwrap()
	}
	return KindUnknown
}

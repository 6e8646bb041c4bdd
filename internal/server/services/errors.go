package services

import (
	"errors"
	"fmt"
)

// Kind classifies PhotoService failures so transports can map them without
// inspecting store errors.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindStorageWrite
	KindIndexWrite
	KindStorageRead
	KindIndexRead
	KindStorageDelete
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindStorageWrite:
		return "storage_write"
	case KindIndexWrite:
		return "index_write"
	case KindStorageRead:
		return "storage_read"
	case KindIndexRead:
		return "index_read"
	case KindStorageDelete:
		return "storage_delete"
	default:
		return "unknown"
	}
}

// Error is returned by every PhotoService operation. Ref is the photo id or
// storage key the operation addressed, when known.
type Error struct {
	Kind Kind
	Op   string
	Ref  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Ref != "" {
		msg += fmt.Sprintf(" [%s]", e.Ref)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op, ref string, err error) *Error {
	return &Error{Kind: kind, Op: op, Ref: ref, Err: err}
}

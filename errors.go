package meshdb

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status is the closed taxonomy of result codes every core operation maps
// its failures onto. The numeric values are part of the wire contract
// (file readers/writers and parallel collaborators persist them) and must
// never be renumbered.
type Status int

const (
	Success Status = iota
	IndexOutOfRange
	TypeOutOfRange
	MemoryAllocationFailed
	EntityNotFound
	MultipleEntitiesFound
	TagNotFound
	TagAlreadyAllocated
	InvalidSize
	UnsupportedOperation
	IOError
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case IndexOutOfRange:
		return "IndexOutOfRange"
	case TypeOutOfRange:
		return "TypeOutOfRange"
	case MemoryAllocationFailed:
		return "MemoryAllocationFailed"
	case EntityNotFound:
		return "EntityNotFound"
	case MultipleEntitiesFound:
		return "MultipleEntitiesFound"
	case TagNotFound:
		return "TagNotFound"
	case TagAlreadyAllocated:
		return "TagAlreadyAllocated"
	case InvalidSize:
		return "InvalidSize"
	case UnsupportedOperation:
		return "UnsupportedOperation"
	case IOError:
		return "IOError"
	case Failure:
		return "Failure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Error is the error type returned by every exported core operation. It
// carries the Status the operation failed with, the operation name for
// diagnosability, and an optional wrapped cause.
type Error struct {
	Status Status
	Op     string
	Handle Handle
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("meshdb: %s: %s (handle=%s): %v", e.Op, e.Status, e.Handle, e.cause)
	}
	if e.Handle != InvalidHandle {
		return fmt.Sprintf("meshdb: %s: %s (handle=%s)", e.Op, e.Status, e.Handle)
	}
	return fmt.Sprintf("meshdb: %s: %s", e.Op, e.Status)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets callers write errors.Is(err, meshdb.ErrEntityNotFound) instead of
// comparing Status fields by hand.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status
}

func newErr(op string, status Status, h Handle) *Error {
	return &Error{Op: op, Status: status, Handle: h}
}

func wrapErr(op string, status Status, h Handle, cause error) *Error {
	return &Error{Op: op, Status: status, Handle: h, cause: errors.WithStack(cause)}
}

// Sentinel errors for use with errors.Is. Op and Handle are zero-valued;
// use (*Error).Status on the concrete error when those fields matter.
var (
	ErrIndexOutOfRange        = &Error{Status: IndexOutOfRange}
	ErrTypeOutOfRange         = &Error{Status: TypeOutOfRange}
	ErrMemoryAllocationFailed = &Error{Status: MemoryAllocationFailed}
	ErrEntityNotFound         = &Error{Status: EntityNotFound}
	ErrMultipleEntitiesFound  = &Error{Status: MultipleEntitiesFound}
	ErrTagNotFound            = &Error{Status: TagNotFound}
	ErrTagAlreadyAllocated    = &Error{Status: TagAlreadyAllocated}
	ErrInvalidSize            = &Error{Status: InvalidSize}
	ErrUnsupportedOperation   = &Error{Status: UnsupportedOperation}
	ErrIOError                = &Error{Status: IOError}
	ErrFailure                = &Error{Status: Failure}
)

// BulkError is returned by range-based bulk operations (spec.md §7): the
// first failing handle short-circuits the call, but effects already
// applied to earlier handles in the range are retained.
type BulkError struct {
	FirstFailure Handle
	Err          error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("meshdb: bulk operation stopped at handle %s: %v", e.FirstFailure, e.Err)
}

func (e *BulkError) Unwrap() error { return e.Err }

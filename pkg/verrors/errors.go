// Package verrors defines VecStore's error taxonomy: an Op/Err wrapping
// convention generalized into a typed-kind error so callers can branch on
// error class without string matching.
package verrors

import (
	"errors"
	"fmt"
)

// Kind groups errors into the seven taxonomy classes from spec §7.
type Kind int

const (
	Validation Kind = iota
	NotFound
	Conflict
	Corruption
	IO
	Transient
	Internal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Corruption:
		return "corruption"
	case IO:
		return "io"
	case Transient:
		return "transient"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with an operation name and a taxonomy Kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vecstore: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("vecstore: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return errors.Is(e.Err, target) }

// Wrap attaches an operation name and kind to err. Returns nil if err is nil.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the Kind of err if it (or something it wraps) is a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Internal, false
}

// Sentinel errors for the common cases named in spec §7.
var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrUnknownTokenizer  = errors.New("unknown tokenizer")
	ErrKLimit            = errors.New("k exceeds configured limit")
	ErrDuplicateID       = errors.New("duplicate id in strict mode")

	ErrIDNotFound         = errors.New("id not found")
	ErrSnapshotNotFound   = errors.New("snapshot not found")
	ErrNamespaceNotFound  = errors.New("namespace not found")

	ErrNamespaceExists = errors.New("namespace already exists")
	ErrSnapshotExists  = errors.New("snapshot already exists")
	ErrStatusForbidden = errors.New("operation forbidden by namespace status")

	ErrWalCRC         = errors.New("wal record failed crc check")
	ErrSnapshotMagic  = errors.New("snapshot magic mismatch")
	ErrGraphInvariant = errors.New("hnsw graph invariant violated")

	ErrFsyncFailed = errors.New("fsync failed")
	ErrWriteFailed = errors.New("write failed")
	ErrReadFailed  = errors.New("read failed")

	ErrCancelled = errors.New("operation cancelled")
	ErrTimeout   = errors.New("operation timed out")

	ErrStoreClosed = errors.New("store is closed")
)

// QuotaExceeded is a typed Validation error naming the exceeded quota.
type QuotaExceeded struct {
	Which string
}

func (e *QuotaExceeded) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.Which)
}

// NewQuotaExceeded builds a wrapped Validation error for a specific quota.
func NewQuotaExceeded(op, which string) error {
	return Wrap(op, Validation, &QuotaExceeded{Which: which})
}

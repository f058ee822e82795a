package reftracker

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when a named object does not exist.
// For Add this selects the create path, for Remove it means the tracker
// is already gone; neither treats it as a failure.
var ErrObjectNotFound = errors.New("object not found")

// ErrObjectExists is returned by ObjectStore.Create when the object was
// created concurrently. The caller lost the create race and should retry
// the operation against the now-existing object.
var ErrObjectExists = errors.New("object already exists")

// ErrAttrNotFound is returned by ObjectStore.GetAttr when the object exists
// but does not carry the requested attribute.
var ErrAttrNotFound = errors.New("attribute not found")

// ErrVersionMismatch is returned by ObjectStore.Write when the object's
// version no longer matches the expected value. The whole
// read-reconcile-write sequence must be restarted by the caller; the engine
// never retries on its own.
var ErrVersionMismatch = errors.New("object version mismatch")

// ErrEmptyKeyBatch is returned by Add and Remove when called with no keys.
var ErrEmptyKeyBatch = errors.New("empty key batch")

// UnsupportedVersionError indicates a stored schema version this build does
// not know how to handle. Not retriable.
type UnsupportedVersionError struct {
	Version uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported tracker schema version %d", e.Version)
}

type DecodeError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func decodeErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DecodeError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

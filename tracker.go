package reftracker

import (
	"errors"
	"fmt"
	"log/slog"
)

// DefaultTrackerName is the well-known object name used when the calling
// layer does not supply one.
const DefaultTrackerName = "reftracker"

// Info describes one tracker object as observed by Inspect.
type Info struct {
	SchemaVersion uint32
	Refcount      uint32
	StoreVersion  uint64
}

// Add adds keys to the named reference tracker. Keys already tracked are
// skipped, so repeating a call has no further effect. If the tracker does
// not exist yet, it is created exclusively, populated with the keys, and
// created reports true.
//
// Add performs at most one read and one write round trip and never retries:
// a concurrent writer surfaces as ErrVersionMismatch (or ErrObjectExists
// when two first-Adds race), and the caller restarts the whole operation.
func Add(store ObjectStore, name string, keys []string) (created bool, err error) {
	if len(keys) == 0 {
		return false, ErrEmptyKeyBatch
	}

	version, err := probeVersion(store, name)
	if errors.Is(err, ErrObjectNotFound) {
		h := schemas[CurrentVersion]
		if err := h.create(store, name, keys); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	h, err := handlerFor(version)
	if err != nil {
		return false, err
	}
	return false, h.add(store, name, keys)
}

// Remove removes keys from the named reference tracker. Keys not tracked
// are skipped. When the last key is removed, the tracker object is deleted
// instead of being left at zero, and deleted reports true; a tracker that
// is already gone also reports deleted = true.
//
// Retry semantics match Add.
func Remove(store ObjectStore, name string, keys []string) (deleted bool, err error) {
	if len(keys) == 0 {
		return false, ErrEmptyKeyBatch
	}

	version, err := probeVersion(store, name)
	if errors.Is(err, ErrObjectNotFound) {
		slog.Debug("tracker already absent", "tracker", name)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	h, err := handlerFor(version)
	if err != nil {
		return false, err
	}
	return h.remove(store, name, keys)
}

// Inspect reports the schema version, reference count, and store version of
// the named tracker. Purely read-only.
func Inspect(store ObjectStore, name string) (Info, error) {
	version, err := probeVersion(store, name)
	if err != nil {
		return Info{}, err
	}
	h, err := handlerFor(version)
	if err != nil {
		return Info{}, err
	}
	return h.inspect(store, name)
}

// trackerV1 implements schema version 1: a 4-byte big-endian refcount
// payload, membership in the object's sub-map, and the store's native
// object version as the CAS token.
type trackerV1 struct{}

func (trackerV1) create(store ObjectStore, name string, keys []string) error {
	uniq := dedupKeys(keys)
	attrs := map[string][]byte{
		AttrSchemaVersion: encodeVersionAttr(CurrentVersion),
	}
	err := store.Create(name, attrs, encodeRefcountV1(uint32(len(uniq))), uniq)
	if err != nil {
		return err
	}
	slog.Debug("tracker created", "tracker", name, "refcount", len(uniq))
	return nil
}

func (trackerV1) add(store ObjectStore, name string, keys []string) error {
	rec, err := reconcileV1(store, name, keys)
	if err != nil {
		return err
	}

	if len(rec.absent) == 0 {
		slog.Debug("all keys already tracked", "tracker", name, "keys", len(keys))
		return nil
	}

	newCount := rec.refcount + uint32(len(rec.absent))
	err = store.Write(name, rec.version, WriteOp{
		Payload:    encodeRefcountV1(newCount),
		InsertKeys: rec.absent,
	})
	if err != nil {
		return err
	}
	slog.Debug("keys added", "tracker", name, "added", len(rec.absent), "requested", len(keys), "refcount", newCount)
	return nil
}

func (trackerV1) remove(store ObjectStore, name string, keys []string) (bool, error) {
	rec, err := reconcileV1(store, name, keys)
	if err != nil {
		return false, err
	}

	if len(rec.present) == 0 {
		slog.Debug("no keys to remove", "tracker", name, "keys", len(keys))
		return false, nil
	}

	if uint32(len(rec.present)) > rec.refcount {
		return false, fmt.Errorf("tracker %q refcount %d is less than its tracked key count", name, rec.refcount)
	}
	newCount := rec.refcount - uint32(len(rec.present))

	if newCount == 0 {
		err := store.Write(name, rec.version, WriteOp{Delete: true})
		if err != nil {
			return false, err
		}
		slog.Debug("tracker holds no more references, deleted", "tracker", name)
		return true, nil
	}

	err = store.Write(name, rec.version, WriteOp{
		Payload:    encodeRefcountV1(newCount),
		RemoveKeys: rec.present,
	})
	if err != nil {
		return false, err
	}
	slog.Debug("keys removed", "tracker", name, "removed", len(rec.present), "requested", len(keys), "refcount", newCount)
	return false, nil
}

func (trackerV1) inspect(store ObjectStore, name string) (Info, error) {
	res, err := store.Read(name, nil)
	if err != nil {
		return Info{}, err
	}
	refcount, err := decodeRefcountV1(res.Payload)
	if err != nil {
		return Info{}, err
	}
	return Info{SchemaVersion: 1, Refcount: refcount, StoreVersion: res.Version}, nil
}

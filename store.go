package reftracker

// ObjectStore is the narrow object-store contract the tracker engine runs
// against (Bolt, in-memory, or any remote store with per-object versions).
// Each method is a single atomic round trip: the implementation must apply
// every part of a call, or none, and a reader must never observe a partial
// write.
//
// Object versions start at 1 on creation and are bumped by every successful
// non-delete Write. They are maintained by the store, not by callers, and
// serve as the optimistic-concurrency token.
type ObjectStore interface {
	// Create atomically creates an object with the given attributes,
	// payload, and initial sub-map keys (values empty). Fails with
	// ErrObjectExists if the object is already present, leaving it intact.
	Create(name string, attrs map[string][]byte, payload []byte, keys []string) error

	// Read returns the object's payload and version, plus the subset of
	// the requested keys present in its sub-map, all observed in one atomic
	// read. Returns ErrObjectNotFound if the object does not exist.
	Read(name string, keys []string) (ReadResult, error)

	// Write atomically applies op to the object, but only if its current
	// version equals expectedVersion; otherwise it fails with
	// ErrVersionMismatch and changes nothing. Returns ErrObjectNotFound if
	// the object does not exist.
	Write(name string, expectedVersion uint64, op WriteOp) error

	// GetAttr reads one out-of-band attribute. Returns ErrObjectNotFound
	// for a missing object, ErrAttrNotFound for a missing attribute on an
	// existing object.
	GetAttr(name, attr string) ([]byte, error)
}

// ReadResult is the mutually consistent snapshot returned by
// ObjectStore.Read.
type ReadResult struct {
	Payload []byte
	Version uint64

	// Present holds the requested keys found in the object's sub-map.
	// Keys absent from the sub-map are absent from the map.
	Present map[string]bool
}

// WriteOp describes one atomic mutation of an object.
type WriteOp struct {
	// Payload replaces the object's payload when non-nil.
	Payload []byte

	// InsertKeys are added to the sub-map with empty values;
	// RemoveKeys are deleted from it.
	InsertKeys []string
	RemoveKeys []string

	// Delete removes the whole object (payload, attributes, and sub-map).
	// When set, the other fields are ignored.
	Delete bool
}

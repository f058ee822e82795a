/*
Package reftracker implements a distributed, idempotent reference counter.
Instead of counting increments and decrements, it counts opaque string keys
identifying the holders of a shared resource, so adding the same key twice
or removing a key twice has no further effect. This makes it safe under
at-least-once retry semantics, with multiple concurrent writers, and across
different nodes of a cluster.

All coordination is delegated to the backing object store through the
ObjectStore interface: one atomic transaction per round trip, guarded by the
store's per-object version number. The engine itself is stateless; every Add
or Remove is at most one read and one write round trip, and a lost
optimistic-concurrency race surfaces to the caller as ErrVersionMismatch
(or ErrObjectExists when two first-Adds race to create the object). Retry
policy is owned entirely by the caller.

# Object layout

If not specified otherwise, all values are stored in big-endian order.

Tracker objects are versioned. The schema version is stored as a 4-byte
uint32 in the AttrSchemaVersion out-of-band attribute, set at creation and
never rewritten.

Schema version 1:

	byte idx     type       name
	--------     ------     --------
	 0 .. 3      uint32     refcount

`refcount` is the number of references the tracker holds. The reference
keys themselves live in the object's ordered sub-map (values empty); the
payload count is a denormalized cache of the sub-map's cardinality, kept
consistent by every write. A tracker whose count would reach zero is
deleted outright: there is never a persisted zero-count object.

The compare-and-swap token is the store's own per-object version number,
so the payload carries no generation counter of its own.
*/
package reftracker

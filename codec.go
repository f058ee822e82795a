package reftracker

import "encoding/binary"

// AttrSchemaVersion is the out-of-band attribute holding the tracker's
// schema version as a 4-byte big-endian uint32. Written once at creation,
// never rewritten.
const AttrSchemaVersion = "reftracker.schema-version"

// CurrentVersion is the schema version assigned to newly created trackers.
const CurrentVersion = 1

const (
	versionAttrSize = 4
	v1PayloadSize   = 4
)

func encodeVersionAttr(version uint32) []byte {
	var buf [versionAttrSize]byte
	binary.BigEndian.PutUint32(buf[:], version)
	return buf[:]
}

func decodeVersionAttr(data []byte) (uint32, error) {
	if len(data) != versionAttrSize {
		return 0, decodeErrf(data, 0, nil, "schema version attr is %d bytes, wanted %d", len(data), versionAttrSize)
	}
	return binary.BigEndian.Uint32(data), nil
}

// Schema v1 payload: a single big-endian uint32 refcount. The key set lives
// in the object's sub-map; refcount is its cardinality, maintained by every
// write. The CAS token is the store's native object version, so no
// generation counter is embedded here.
func encodeRefcountV1(refcount uint32) []byte {
	var buf [v1PayloadSize]byte
	binary.BigEndian.PutUint32(buf[:], refcount)
	return buf[:]
}

func decodeRefcountV1(data []byte) (uint32, error) {
	if len(data) != v1PayloadSize {
		return 0, decodeErrf(data, 0, nil, "v1 payload is %d bytes, wanted %d", len(data), v1PayloadSize)
	}
	return binary.BigEndian.Uint32(data), nil
}

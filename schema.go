package reftracker

import "log/slog"

// schemaHandler is one revision of the tracker protocol. Handlers are
// small stateless values selected from the schemas table by the decoded
// version number; new revisions add a table entry rather than branching
// inside the engine.
type schemaHandler interface {
	create(store ObjectStore, name string, keys []string) error
	add(store ObjectStore, name string, keys []string) error
	remove(store ObjectStore, name string, keys []string) (deleted bool, err error)
	inspect(store ObjectStore, name string) (Info, error)
}

var schemas = map[uint32]schemaHandler{
	1: trackerV1{},
}

// probeVersion reads the schema discriminator of a named tracker object.
// ErrObjectNotFound passes through untouched; callers treat it as the
// ordinary "create" or "already gone" branch, not as a failure.
func probeVersion(store ObjectStore, name string) (uint32, error) {
	data, err := store.GetAttr(name, AttrSchemaVersion)
	if err != nil {
		return 0, err
	}
	version, err := decodeVersionAttr(data)
	if err != nil {
		return 0, err
	}
	slog.Debug("probed tracker schema", "tracker", name, "version", version, hexAttr("attr", data))
	return version, nil
}

func handlerFor(version uint32) (schemaHandler, error) {
	h, found := schemas[version]
	if !found {
		return nil, &UnsupportedVersionError{Version: version}
	}
	return h, nil
}

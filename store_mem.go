package reftracker

import (
	"slices"
	"sort"
	"sync"
)

// MemStore is a transient in-memory ObjectStore. It is intended for tests
// and ephemeral single-process embedding; semantics (exclusive create,
// version numbering, atomicity per call) match BoltStore exactly.
type MemStore struct {
	mu      sync.Mutex
	objects map[string]*memObject
}

type memObject struct {
	version uint64
	attrs   map[string][]byte
	payload []byte
	keys    []string // sorted
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string]*memObject)}
}

func (s *MemStore) Create(name string, attrs map[string][]byte, payload []byte, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.objects[name] != nil {
		return ErrObjectExists
	}

	obj := &memObject{
		version: 1,
		attrs:   cloneAttrs(attrs),
		payload: slices.Clone(payload),
		keys:    slices.Clone(keys),
	}
	sort.Strings(obj.keys)
	obj.keys = slices.Compact(obj.keys)
	s.objects[name] = obj
	return nil
}

func (s *MemStore) Read(name string, keys []string) (ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := s.objects[name]
	if obj == nil {
		return ReadResult{}, ErrObjectNotFound
	}

	res := ReadResult{
		Payload: slices.Clone(obj.payload),
		Version: obj.version,
		Present: make(map[string]bool, len(keys)),
	}
	for _, key := range keys {
		if obj.contains(key) {
			res.Present[key] = true
		}
	}
	return res, nil
}

func (s *MemStore) Write(name string, expectedVersion uint64, op WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := s.objects[name]
	if obj == nil {
		return ErrObjectNotFound
	}
	if obj.version != expectedVersion {
		return ErrVersionMismatch
	}

	if op.Delete {
		delete(s.objects, name)
		return nil
	}

	if op.Payload != nil {
		obj.payload = slices.Clone(op.Payload)
	}
	for _, key := range op.InsertKeys {
		obj.insert(key)
	}
	for _, key := range op.RemoveKeys {
		obj.remove(key)
	}
	obj.version++
	return nil
}

func (s *MemStore) GetAttr(name, attr string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := s.objects[name]
	if obj == nil {
		return nil, ErrObjectNotFound
	}
	v, found := obj.attrs[attr]
	if !found {
		return nil, ErrAttrNotFound
	}
	return slices.Clone(v), nil
}

func (obj *memObject) find(key string) (idx int, ok bool) {
	i := sort.SearchStrings(obj.keys, key)
	if i < len(obj.keys) && obj.keys[i] == key {
		return i, true
	}
	return i, false
}

func (obj *memObject) contains(key string) bool {
	_, ok := obj.find(key)
	return ok
}

func (obj *memObject) insert(key string) {
	i, ok := obj.find(key)
	if ok {
		return
	}
	obj.keys = slices.Insert(obj.keys, i, key)
}

func (obj *memObject) remove(key string) {
	i, ok := obj.find(key)
	if !ok {
		return
	}
	obj.keys = slices.Delete(obj.keys, i, i+1)
}

func cloneAttrs(attrs map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(attrs))
	for k, v := range attrs {
		out[k] = slices.Clone(v)
	}
	return out
}

package reftracker

import (
	"bytes"
	"fmt"
	"time"
	"unsafe"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

const (
	objectsBucket = "objects"
	keySetsBucket = "keysets"
)

// BoltStore is a persistent ObjectStore backed by a Bolt database.
//
// Each object is a msgpack-encoded meta record (store version, attributes,
// payload) in the "objects" bucket, keyed by object name, plus a nested
// bucket under "keysets" holding the object's sub-map. Every ObjectStore
// call runs as one Bolt transaction, so the atomicity and precondition
// contracts hold without extra locking.
type BoltStore struct {
	bdb *bbolt.DB
}

type BoltOptions struct {
	IsTesting bool
	MmapSize  int
}

type boltObject struct {
	Version uint64            `msgpack:"v"`
	Attrs   map[string][]byte `msgpack:"a"`
	Payload []byte            `msgpack:"p"`
}

func OpenBolt(path string, opt BoltOptions) (*BoltStore, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("reftracker: %w", err)
	}

	err = bdb.Update(func(btx *bbolt.Tx) error {
		if _, err := btx.CreateBucketIfNotExists([]byte(objectsBucket)); err != nil {
			return err
		}
		_, err := btx.CreateBucketIfNotExists([]byte(keySetsBucket))
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("reftracker: %w", err)
	}

	return &BoltStore{bdb: bdb}, nil
}

func (s *BoltStore) Bolt() *bbolt.DB { return s.bdb }

func (s *BoltStore) Close() error { return s.bdb.Close() }

func (s *BoltStore) Create(name string, attrs map[string][]byte, payload []byte, keys []string) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		objects := btx.Bucket([]byte(objectsBucket))
		if objects.Get(unsafeBytesFromString(name)) != nil {
			return ErrObjectExists
		}

		record, err := msgpack.Marshal(&boltObject{
			Version: 1,
			Attrs:   attrs,
			Payload: payload,
		})
		if err != nil {
			return err
		}
		if err := objects.Put([]byte(name), record); err != nil {
			return err
		}

		keySet, err := btx.Bucket([]byte(keySetsBucket)).CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := keySet.Put([]byte(key), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Read(name string, keys []string) (ReadResult, error) {
	var res ReadResult
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		obj, err := s.loadObject(btx, name)
		if err != nil {
			return err
		}

		res.Payload = bytes.Clone(obj.Payload)
		res.Version = obj.Version
		res.Present = make(map[string]bool, len(keys))

		keySet := btx.Bucket([]byte(keySetsBucket)).Bucket(unsafeBytesFromString(name))
		if keySet == nil {
			return nil
		}
		c := keySet.Cursor()
		for _, key := range keys {
			// Seek instead of Get: zero-length values and missing keys are
			// otherwise indistinguishable.
			k, _ := c.Seek(unsafeBytesFromString(key))
			if k != nil && string(k) == key {
				res.Present[key] = true
			}
		}
		return nil
	})
	if err != nil {
		return ReadResult{}, err
	}
	return res, nil
}

func (s *BoltStore) Write(name string, expectedVersion uint64, op WriteOp) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		objects := btx.Bucket([]byte(objectsBucket))
		obj, err := s.loadObject(btx, name)
		if err != nil {
			return err
		}
		if obj.Version != expectedVersion {
			return ErrVersionMismatch
		}

		if op.Delete {
			if err := objects.Delete(unsafeBytesFromString(name)); err != nil {
				return err
			}
			err := btx.Bucket([]byte(keySetsBucket)).DeleteBucket(unsafeBytesFromString(name))
			if err == bbolt.ErrBucketNotFound {
				return nil
			}
			return err
		}

		if op.Payload != nil {
			obj.Payload = op.Payload
		}
		obj.Version++

		record, err := msgpack.Marshal(obj)
		if err != nil {
			return err
		}
		if err := objects.Put([]byte(name), record); err != nil {
			return err
		}

		keySet, err := btx.Bucket([]byte(keySetsBucket)).CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		for _, key := range op.InsertKeys {
			if err := keySet.Put([]byte(key), nil); err != nil {
				return err
			}
		}
		for _, key := range op.RemoveKeys {
			if err := keySet.Delete(unsafeBytesFromString(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetAttr(name, attr string) ([]byte, error) {
	var value []byte
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		obj, err := s.loadObject(btx, name)
		if err != nil {
			return err
		}
		v, found := obj.Attrs[attr]
		if !found {
			return ErrAttrNotFound
		}
		value = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BoltStore) loadObject(btx *bbolt.Tx, name string) (*boltObject, error) {
	record := btx.Bucket([]byte(objectsBucket)).Get(unsafeBytesFromString(name))
	if record == nil {
		return nil, ErrObjectNotFound
	}
	var obj boltObject
	if err := msgpack.Unmarshal(record, &obj); err != nil {
		return nil, decodeErrf(record, 0, err, "corrupted meta record for object %q", name)
	}
	return &obj, nil
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

package reftracker

import (
	"bytes"
	"errors"
	"os"
	"reflect"
	"testing"
)

// eachStore runs the same test against every ObjectStore implementation;
// both must behave identically under the engine.
func eachStore(t *testing.T, f func(t *testing.T, store ObjectStore)) {
	t.Run("mem", func(t *testing.T) {
		f(t, NewMemStore())
	})
	t.Run("bolt", func(t *testing.T) {
		f(t, setupBolt(t))
	})
}

func setupBolt(t testing.TB) *BoltStore {
	t.Helper()

	dbFile := must(os.CreateTemp("", "reftracker_test_*.db"))
	t.Logf("DB: %s", dbFile.Name())
	dbFile.Close()

	store := must(OpenBolt(dbFile.Name(), BoltOptions{IsTesting: true}))
	t.Cleanup(func() {
		store.Close()
		os.Remove(dbFile.Name())
	})
	return store
}

func TestStoreCreate(t *testing.T) {
	eachStore(t, func(t *testing.T, store ObjectStore) {
		attrs := map[string][]byte{"attr": x("aa")}
		ensure(t, store.Create("obj", attrs, x("00000002"), []string{"a", "b"}))

		v, err := store.GetAttr("obj", "attr")
		if err != nil || !bytes.Equal(v, x("aa")) {
			t.Fatalf("GetAttr = (%x, %v), wanted (aa, nil)", v, err)
		}

		res, err := store.Read("obj", []string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if res.Version != 1 {
			t.Fatalf("Version = %d, wanted 1", res.Version)
		}
		if !bytes.Equal(res.Payload, x("00000002")) {
			t.Fatalf("Payload = %x, wanted 00000002", res.Payload)
		}
		if !res.Present["a"] || !res.Present["b"] || res.Present["c"] {
			t.Fatalf("Present = %v, wanted a and b only", res.Present)
		}

		err = store.Create("obj", attrs, x("00000001"), []string{"z"})
		if !errors.Is(err, ErrObjectExists) {
			t.Fatalf("second Create = %v, wanted ErrObjectExists", err)
		}

		// The losing create must not have clobbered anything.
		res = mustRead(t, store, "obj", "a", "z")
		if !bytes.Equal(res.Payload, x("00000002")) || !res.Present["a"] || res.Present["z"] {
			t.Fatalf("object damaged by losing create: payload %x, present %v", res.Payload, res.Present)
		}
	})
}

func TestStoreMissingObject(t *testing.T) {
	eachStore(t, func(t *testing.T, store ObjectStore) {
		if _, err := store.Read("nope", nil); !errors.Is(err, ErrObjectNotFound) {
			t.Fatalf("Read(missing) = %v, wanted ErrObjectNotFound", err)
		}
		if _, err := store.GetAttr("nope", "attr"); !errors.Is(err, ErrObjectNotFound) {
			t.Fatalf("GetAttr(missing) = %v, wanted ErrObjectNotFound", err)
		}
		if err := store.Write("nope", 1, WriteOp{Delete: true}); !errors.Is(err, ErrObjectNotFound) {
			t.Fatalf("Write(missing) = %v, wanted ErrObjectNotFound", err)
		}

		ensure(t, store.Create("obj", nil, x("00000000"), nil))
		if _, err := store.GetAttr("obj", "nope"); !errors.Is(err, ErrAttrNotFound) {
			t.Fatalf("GetAttr(missing attr) = %v, wanted ErrAttrNotFound", err)
		}
	})
}

func TestStoreWrite(t *testing.T) {
	eachStore(t, func(t *testing.T, store ObjectStore) {
		ensure(t, store.Create("obj", nil, x("00000001"), []string{"a"}))

		err := store.Write("obj", 99, WriteOp{Payload: x("ffffffff")})
		if !errors.Is(err, ErrVersionMismatch) {
			t.Fatalf("Write(stale version) = %v, wanted ErrVersionMismatch", err)
		}
		res := mustRead(t, store, "obj", "a")
		if res.Version != 1 || !bytes.Equal(res.Payload, x("00000001")) {
			t.Fatalf("failed precondition must not change anything: version %d, payload %x", res.Version, res.Payload)
		}

		ensure(t, store.Write("obj", 1, WriteOp{
			Payload:    x("00000002"),
			InsertKeys: []string{"b"},
		}))
		res = mustRead(t, store, "obj", "a", "b")
		if res.Version != 2 {
			t.Fatalf("Version = %d, wanted 2 after one write", res.Version)
		}
		if !bytes.Equal(res.Payload, x("00000002")) || !res.Present["a"] || !res.Present["b"] {
			t.Fatalf("write not applied: payload %x, present %v", res.Payload, res.Present)
		}

		ensure(t, store.Write("obj", 2, WriteOp{
			Payload:    x("00000001"),
			RemoveKeys: []string{"a"},
		}))
		res = mustRead(t, store, "obj", "a", "b")
		if res.Version != 3 || res.Present["a"] || !res.Present["b"] {
			t.Fatalf("remove not applied: version %d, present %v", res.Version, res.Present)
		}
	})
}

func TestStoreDelete(t *testing.T) {
	eachStore(t, func(t *testing.T, store ObjectStore) {
		ensure(t, store.Create("obj", map[string][]byte{"attr": x("01")}, x("00000001"), []string{"a"}))
		ensure(t, store.Write("obj", 1, WriteOp{Delete: true}))

		if _, err := store.Read("obj", nil); !errors.Is(err, ErrObjectNotFound) {
			t.Fatalf("Read(deleted) = %v, wanted ErrObjectNotFound", err)
		}
		if _, err := store.GetAttr("obj", "attr"); !errors.Is(err, ErrObjectNotFound) {
			t.Fatalf("GetAttr(deleted) = %v, wanted ErrObjectNotFound", err)
		}

		// The name is reusable after deletion, starting from version 1 again.
		ensure(t, store.Create("obj", nil, x("00000001"), []string{"z"}))
		res := mustRead(t, store, "obj", "a", "z")
		if res.Version != 1 || res.Present["a"] || !res.Present["z"] {
			t.Fatalf("recreate after delete: version %d, present %v", res.Version, res.Present)
		}
	})
}

func TestBoltStorePersistence(t *testing.T) {
	dbFile := must(os.CreateTemp("", "reftracker_test_*.db"))
	dbFile.Close()
	defer os.Remove(dbFile.Name())

	store := must(OpenBolt(dbFile.Name(), BoltOptions{IsTesting: true}))
	ensure(t, store.Create("obj", map[string][]byte{"attr": x("07")}, x("00000001"), []string{"a"}))
	ensure(t, store.Close())

	store = must(OpenBolt(dbFile.Name(), BoltOptions{IsTesting: true}))
	defer store.Close()

	v, err := store.GetAttr("obj", "attr")
	if err != nil || !bytes.Equal(v, x("07")) {
		t.Fatalf("GetAttr after reopen = (%x, %v), wanted (07, nil)", v, err)
	}
	res := mustRead(t, store, "obj", "a")
	if res.Version != 1 || !res.Present["a"] {
		t.Fatalf("object did not survive reopen: version %d, present %v", res.Version, res.Present)
	}
}

func mustRead(t testing.TB, store ObjectStore, name string, keys ...string) ReadResult {
	t.Helper()
	res, err := store.Read(name, keys)
	if err != nil {
		t.Fatalf("Read(%q) failed: %v", name, err)
	}
	return res
}

func ensure(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** %v", err)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

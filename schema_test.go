package reftracker

import (
	"errors"
	"testing"
)

func TestProbeVersion(t *testing.T) {
	store := NewMemStore()

	if _, err := probeVersion(store, "rt"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("probeVersion(missing) = %v, wanted ErrObjectNotFound", err)
	}

	mustAdd(t, store, "rt", "a")
	v, err := probeVersion(store, "rt")
	if err != nil || v != 1 {
		t.Fatalf("probeVersion = (%d, %v), wanted (1, nil)", v, err)
	}
}

func TestProbeVersionCorruptAttr(t *testing.T) {
	store := NewMemStore()
	attrs := map[string][]byte{AttrSchemaVersion: x("01")}
	ensure(t, store.Create("rt", attrs, x("00000000"), nil))

	var de *DecodeError
	if _, err := probeVersion(store, "rt"); !errors.As(err, &de) {
		t.Fatalf("probeVersion(corrupt attr) = %v, wanted DecodeError", err)
	}
}

func TestHandlerFor(t *testing.T) {
	h, err := handlerFor(1)
	if err != nil || h == nil {
		t.Fatalf("handlerFor(1) = (%v, %v), wanted the v1 handler", h, err)
	}

	var uve *UnsupportedVersionError
	_, err = handlerFor(2)
	if !errors.As(err, &uve) || uve.Version != 2 {
		t.Fatalf("handlerFor(2) = %v, wanted UnsupportedVersionError{2}", err)
	}
}

package artifact

import (
	"bytes"
	"context"
	"testing"
)

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Put(ctx, "model_v1", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := m.Get(ctx, "model_v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Errorf("Get = %q, want payload", got)
	}

	if _, err := m.Get(ctx, "missing"); err == nil {
		t.Error("Get of missing key: want error")
	}
}

func TestMemoryDefensiveCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	original := []byte("abc")
	if err := m.Put(ctx, "k", original); err != nil {
		t.Fatalf("Put: %v", err)
	}
	original[0] = 'x'

	first, _ := m.Get(ctx, "k")
	if string(first) != "abc" {
		t.Errorf("stored value mutated through caller slice: %q", first)
	}

	first[0] = 'y'
	second, _ := m.Get(ctx, "k")
	if string(second) != "abc" {
		t.Errorf("stored value mutated through returned slice: %q", second)
	}
}

func TestMemoryListByPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for _, key := range []string{"metadata_v2", "model_v1", "model_v2", "metadata_v1"} {
		if err := m.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}

	keys, err := m.List(ctx, "model_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 || keys[0] != "model_v1" || keys[1] != "model_v2" {
		t.Errorf("List = %v, want sorted [model_v1 model_v2]", keys)
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Put(ctx, "a", []byte("1"))
	m.Put(ctx, "b", []byte("2"))

	if err := m.Delete(ctx, "a", "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "a"); err == nil {
		t.Error("deleted key still readable")
	}
	if _, err := m.Get(ctx, "b"); err != nil {
		t.Errorf("unrelated key lost: %v", err)
	}
}

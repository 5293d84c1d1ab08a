package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"patientcore/internal/blob/core"
)

func TestMemoryPutGetDelete(t *testing.T) {
	store := New()
	ctx := context.Background()

	info, err := store.Put(ctx, "k", strings.NewReader("data"), core.PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 4 || store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected info: %+v", info)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("other"), core.PutOptions{}); err == nil {
		t.Fatalf("overwrite allowed")
	}

	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "data" {
		t.Fatalf("payload mismatch: %q", data)
	}

	ok, err := store.Delete(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, err := store.Head(ctx, "k"); err == nil {
		t.Fatalf("head after delete succeeded")
	}
}

func TestMemoryListPrefix(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, k := range []string{"a/1", "a/2", "b/1"} {
		if _, err := store.Put(ctx, k, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	infos, err := store.List(ctx, "a/")
	if err != nil || len(infos) != 2 {
		t.Fatalf("expected 2 entries, got %d err=%v", len(infos), err)
	}
	if infos[0].Key != "a/1" || infos[1].Key != "a/2" {
		t.Fatalf("list unsorted: %v", infos)
	}
}

func TestMemoryPresignUnsupported(t *testing.T) {
	store := New()
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{}); err != core.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

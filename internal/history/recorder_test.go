package history

import (
	"context"
	"testing"

	"modguard/internal/store"
)

func TestRecorder_AdjacentDedup(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory())

	for _, name := range []string{
		"Ada (@ada)",
		"Ada (@ada)", // adjacent duplicate, dropped
		"Countess (@ada)",
		"Ada (@ada)", // earlier name again, kept
	} {
		if err := r.Record(ctx, 1, name); err != nil {
			t.Fatalf("Record(%q): %v", name, err)
		}
	}

	entries, err := r.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := []string{"Ada (@ada)", "Countess (@ada)", "Ada (@ada)"}
	if len(entries) != len(want) {
		t.Fatalf("Get = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i], want[i])
		}
	}
}

func TestRecorder_GetEmpty(t *testing.T) {
	r := New(store.NewMemory())

	entries, err := r.Get(context.Background(), 404)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Get = %v, want empty", entries)
	}
}

func TestRecorder_LookupBySubstring(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemory())

	if err := r.Record(ctx, 7, "Grace Hopper (@grace)"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.Record(ctx, 7, "Admiral Grace (@grace)"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	userID, entries, found, err := r.LookupBySubstring(ctx, "GRACE")
	if err != nil {
		t.Fatalf("LookupBySubstring: %v", err)
	}
	if !found || userID != 7 {
		t.Fatalf("found = %v, userID = %d", found, userID)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %v", entries)
	}

	if _, _, found, _ := r.LookupBySubstring(ctx, "nobody"); found {
		t.Error("unexpected match")
	}
}

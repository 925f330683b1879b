package admin

import (
	"context"
	"testing"

	"modguard/internal/store"
)

func TestGate_GrantRevoke(t *testing.T) {
	ctx := context.Background()
	g := New(store.NewMemory())

	if g.IsAdmin(ctx, 42) {
		t.Error("unknown user should not be admin")
	}

	if err := g.Grant(ctx, 42); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !g.IsAdmin(ctx, 42) {
		t.Error("granted user should be admin")
	}

	if err := g.Revoke(ctx, 42); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if g.IsAdmin(ctx, 42) {
		t.Error("revoked user should not be admin")
	}
}

func TestGate_RevokeAbsentIsNoop(t *testing.T) {
	g := New(store.NewMemory())

	if err := g.Revoke(context.Background(), 999); err != nil {
		t.Errorf("Revoke of absent admin: %v", err)
	}
}

func TestGate_FailsClosed(t *testing.T) {
	g := New(failingStore{})

	if g.IsAdmin(context.Background(), 42) {
		t.Error("store failure must deny authorization")
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (any, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) Set(context.Context, string, any) error { return context.DeadlineExceeded }
func (failingStore) Update(context.Context, string, map[string]any) error {
	return context.DeadlineExceeded
}
func (failingStore) Delete(context.Context, string) error { return context.DeadlineExceeded }
func (failingStore) Append(context.Context, string, any) (string, error) {
	return "", context.DeadlineExceeded
}

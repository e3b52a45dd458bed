package job

import (
	"context"
	"testing"
)

// mockJob is a minimal Job for registry tests.
type mockJob struct {
	name string
}

func (m *mockJob) Name() string        { return m.name }
func (m *mockJob) Description() string { return "Mock " + m.name }
func (m *mockJob) Run(ctx context.Context, opts RunOptions) Result {
	return Result{Success: true}
}

var _ Job = (*mockJob)(nil)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}

	r.Register(&mockJob{name: "sync"})

	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}

	got := r.Get("sync")
	if got == nil {
		t.Fatal("Get(\"sync\") returned nil")
	}
	if got.Name() != "sync" {
		t.Errorf("Get(\"sync\").Name() = %q, want %q", got.Name(), "sync")
	}

	if r.Get("nonexistent") != nil {
		t.Error("Get(\"nonexistent\") should return nil")
	}

	defer func() {
		if rec := recover(); rec == nil {
			t.Error("Register should panic on duplicate")
		}
	}()
	r.Register(&mockJob{name: "sync"})
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockJob{name: "sync"})
	r.Register(&mockJob{name: "expiry"})

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("Names() returned %d names, want 2", len(names))
	}
	if names[0] != "expiry" {
		t.Errorf("names[0] = %q, want %q", names[0], "expiry")
	}
	if names[1] != "sync" {
		t.Errorf("names[1] = %q, want %q", names[1], "sync")
	}
}

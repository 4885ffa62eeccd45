package sessionkit

import (
	"errors"
	"testing"

	"github.com/mindwell-app/sessionkit/store"
)

func TestBuildRequiresBaseURL(t *testing.T) {
	_, err := New().Build()
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestBuilderCannotBeReused(t *testing.T) {
	b := New().WithBaseURL("http://localhost:8000")

	first, err := b.Build()
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	defer first.Close()

	if _, err := b.Build(); !errors.Is(err, ErrBuilderReused) {
		t.Fatalf("expected ErrBuilderReused, got %v", err)
	}
}

func TestBuildDefaultsToMemoryStore(t *testing.T) {
	coordinator, err := New().WithBaseURL("http://localhost:8000").Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer coordinator.Close()

	if _, ok := coordinator.store.(*store.Memory); !ok {
		t.Fatalf("default store is %T, want *store.Memory", coordinator.store)
	}
}

func TestBuildWiresNotifierWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.BaseURL = "http://localhost:8000"
	cfg.Notifier.Enabled = true

	coordinator, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer coordinator.Close()

	if coordinator.notifier == nil {
		t.Fatal("notifier must be wired when enabled")
	}
}

func TestBuildSkipsNotifierWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.BaseURL = "http://localhost:8000"
	cfg.Notifier.Enabled = false

	coordinator, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer coordinator.Close()

	if coordinator.notifier != nil {
		t.Fatal("notifier must not be wired when disabled")
	}
}

package remote

import (
	"errors"
	"testing"
	"time"

	"github.com/gamecache/gamecache/internal/circuit"
	"github.com/gamecache/gamecache/pkg/types"
)

// No Redis server is required here: buildKey and the breaker guard are pure.

func TestRedisStore_BuildKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{"with prefix", "gamecache", "match:1", "gamecache:match:1"},
		{"empty prefix", "", "match:1", "match:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewRedisStore(Config{Addr: "localhost:6379", KeyPrefix: tt.prefix}, nil)
			defer store.Close()

			if got := store.buildKey(tt.key); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRedisStore_GuardTripsOnFailures(t *testing.T) {
	store := NewRedisStore(Config{
		Addr: "localhost:6379",
		Breaker: circuit.New(circuit.Config{
			FailureThreshold: 2,
			Timeout:          time.Minute,
		}),
	}, nil)
	defer store.Close()

	errDown := errors.New("connection refused")
	for i := 0; i < 2; i++ {
		if err := store.guard(func() error { return errDown }); !errors.Is(err, errDown) {
			t.Fatalf("expected failure %d to pass through, got %v", i, err)
		}
	}

	// The breaker is now open: calls fail fast without running.
	invoked := false
	err := store.guard(func() error { invoked = true; return nil })
	if !errors.Is(err, circuit.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if invoked {
		t.Error("guard must not invoke the call while open")
	}
}

func TestRedisStore_GuardNotFoundIsNotFailure(t *testing.T) {
	store := NewRedisStore(Config{
		Addr: "localhost:6379",
		Breaker: circuit.New(circuit.Config{
			FailureThreshold: 1,
			Timeout:          time.Minute,
		}),
	}, nil)
	defer store.Close()

	// Repeated not-found outcomes must surface the sentinel and never trip.
	for i := 0; i < 5; i++ {
		if err := store.guard(func() error { return types.ErrNotFound }); !errors.Is(err, types.ErrNotFound) {
			t.Fatalf("expected ErrNotFound surfaced, got %v", err)
		}
	}

	if err := store.guard(func() error { return nil }); err != nil {
		t.Errorf("breaker tripped on not-found outcomes: %v", err)
	}
}

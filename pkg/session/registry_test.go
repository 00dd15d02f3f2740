package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
)

type fakeTransport struct{ id string }

func (f *fakeTransport) SessionID() string                           { return f.id }
func (f *fakeTransport) HandleMessage(context.Context, []byte) error { return nil }
func (f *fakeTransport) Close() error                                { return nil }

func TestRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	a := &fakeTransport{id: "a"}

	r.Register("a", a)
	got, ok := r.Get("a")
	if !ok || got != a {
		t.Fatalf("Get(a) = %v, %v; want registered transport", got, ok)
	}

	r.Unregister("a")
	if _, ok := r.Get("a"); ok {
		t.Error("entry persisted after Unregister")
	}

	// Unregistering an unknown id is a no-op.
	r.Unregister("missing")
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestLookupNotFound(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup error = %v, want ErrNotFound", err)
	}
}

// TestRandomSequencesMatchModel checks that after any sequence of operations
// the registry holds exactly the registered-minus-unregistered ids.
func TestRandomSequencesMatchModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		r := NewRegistry()
		want := make(map[string]bool)

		for op := 0; op < 200; op++ {
			id := fmt.Sprintf("s%d", rng.Intn(20))
			if rng.Intn(2) == 0 {
				r.Register(id, &fakeTransport{id: id})
				want[id] = true
			} else {
				r.Unregister(id)
				delete(want, id)
			}
		}

		if r.Len() != len(want) {
			t.Fatalf("run %d: Len = %d, want %d", run, r.Len(), len(want))
		}
		for i := 0; i < 20; i++ {
			id := fmt.Sprintf("s%d", i)
			if _, ok := r.Get(id); ok != want[id] {
				t.Fatalf("run %d: Get(%s) present=%v, want %v", run, id, ok, want[id])
			}
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			r.Register(id, &fakeTransport{id: id})
			r.Get(id)
			r.Unregister(id)
		}(i)
	}
	wg.Wait()
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

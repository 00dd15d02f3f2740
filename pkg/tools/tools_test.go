package tools

import (
	"context"
	"errors"
	"testing"
	"time"
)

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echoes its input",
		Parameters:  ObjectSchema(map[string]string{"text": "Text to echo."}, "text"),
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	}
}

func TestRegistryRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(echoTool("echo")); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate Register = %v, want ErrAlreadyExists", err)
	}
	if err := r.Register(Tool{}); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Register(empty) = %v, want ErrEmptyName", err)
	}

	out, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hi" {
		t.Errorf("Execute = %v, want hi", out)
	}

	if _, err := r.Execute(context.Background(), "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Execute(missing) = %v, want ErrNotFound", err)
	}
}

func TestExecuteWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	tool := Tool{Name: "bad", Execute: func(context.Context, map[string]any) (any, error) { return nil, boom }}
	if _, err := Execute(context.Background(), tool, nil); !errors.Is(err, boom) {
		t.Errorf("Execute error = %v, want wrapping boom", err)
	}
}

func TestListToolsReturnsSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("a"))
	set, _ := r.ListTools(context.Background())
	delete(set, "a")
	if _, ok := r.Get("a"); !ok {
		t.Error("mutating the listed map changed the registry")
	}
}

func TestSorted(t *testing.T) {
	set := map[string]Tool{"b": echoTool("b"), "a": echoTool("a"), "c": echoTool("c")}
	got := Sorted(set)
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Name != want {
			t.Errorf("Sorted[%d] = %s, want %s", i, got[i].Name, want)
		}
	}
}

func TestCachedProvider(t *testing.T) {
	calls := 0
	fail := false
	base := ProviderFunc(func(context.Context) (map[string]Tool, error) {
		calls++
		if fail {
			return nil, errors.New("unavailable")
		}
		return map[string]Tool{"echo": echoTool("echo")}, nil
	})

	if Cached(base, 0) == nil {
		t.Fatal("Cached with ttl 0 returned nil")
	}

	p := Cached(base, time.Minute)

	fail = true
	if _, err := p.ListTools(context.Background()); err == nil {
		t.Fatal("expected error from failing provider")
	}
	fail = false
	for i := 0; i < 3; i++ {
		set, err := p.ListTools(context.Background())
		if err != nil || len(set) != 1 {
			t.Fatalf("ListTools = %v, %v (error was cached?)", set, err)
		}
	}
	if calls != 2 {
		t.Errorf("underlying provider called %d times, want 2", calls)
	}
}

package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func backends(t *testing.T) map[string]func(path string) Store {
	t.Helper()
	return map[string]func(path string) Store{
		"json": func(path string) Store { return NewJSONStore(path + ".json") },
		"sqlite": func(path string) Store {
			s, err := NewSQLiteStore(path + ".db")
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			return s
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "prefs")

			s := open(path)
			if _, ok, err := s.Get(ctx, KeyCustomPrompt); err != nil || ok {
				t.Fatalf("fresh store Get = ok %v err %v", ok, err)
			}
			if err := SetCustomPrompt(ctx, s, "X"); err != nil {
				t.Fatalf("SetCustomPrompt: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			// Simulated restart
			s = open(path)
			defer s.Close()
			got, err := CustomPrompt(ctx, s)
			if err != nil {
				t.Fatalf("CustomPrompt: %v", err)
			}
			if got != "X" {
				t.Errorf("CustomPrompt = %q, want %q", got, "X")
			}
		})
	}
}

func TestStoreOverwriteAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(filepath.Join(t.TempDir(), "prefs"))
			defer s.Close()

			s.Set(ctx, "k", "one")
			s.Set(ctx, "k", "two")
			if v, _, _ := s.Get(ctx, "k"); v != "two" {
				t.Errorf("Get = %q, want two", v)
			}

			if err := s.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, ok, _ := s.Get(ctx, "k"); ok {
				t.Error("key should be gone")
			}
			if err := s.Delete(ctx, "never"); err != nil {
				t.Errorf("Delete of missing key: %v", err)
			}
		})
	}
}

func TestJSONStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	os.WriteFile(path, []byte("{not json"), 0o600)

	s := NewJSONStore(path)
	if _, _, err := s.Get(context.Background(), KeyCustomPrompt); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClosedStores(t *testing.T) {
	ctx := context.Background()
	for _, s := range []Store{NewJSONStore(filepath.Join(t.TempDir(), "p.json")), NewMemoryStore()} {
		s.Close()
		if err := s.Set(ctx, "k", "v"); !errors.Is(err, ErrClosed) {
			t.Errorf("%T Set after Close = %v", s, err)
		}
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{BackendJSON, BackendSQLite, BackendMemory} {
		s, err := Open(backend, filepath.Join(dir, "p-"+backend))
		if err != nil {
			t.Fatalf("Open(%q): %v", backend, err)
		}
		s.Close()
	}
	if _, err := Open("etcd", ""); err == nil {
		t.Error("unknown backend should fail")
	}
}

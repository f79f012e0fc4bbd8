package agents

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sample() Set {
	return Set{
		{Name: "a", Instructions: "ia", Handoffs: []string{"b"}},
		{Name: "b", Instructions: "ib", Handoffs: []string{"a", "c"}},
		{Name: "c", Instructions: "ic"},
		{Name: "d", Instructions: "id"},
	}
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name     string
		selected string
		want     []string
	}{
		{"middle", "c", []string{"c", "a", "b", "d"}},
		{"last", "d", []string{"d", "a", "b", "c"}},
		{"already first", "a", []string{"a", "b", "c", "d"}},
		{"unknown", "zzz", []string{"a", "b", "c", "d"}},
		{"empty", "", []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := sample()
			got := orig.Reorder(tt.selected)
			if !reflect.DeepEqual(got.Names(), tt.want) {
				t.Errorf("Reorder(%q) = %v, want %v", tt.selected, got.Names(), tt.want)
			}
			if !reflect.DeepEqual(orig.Names(), []string{"a", "b", "c", "d"}) {
				t.Errorf("original mutated: %v", orig.Names())
			}
		})
	}
}

func TestWithInstructions(t *testing.T) {
	orig := sample()

	got := orig.WithInstructions("be terse")
	if got[0].Instructions != "be terse" {
		t.Errorf("first agent instructions = %q", got[0].Instructions)
	}
	if got[1].Instructions != "ib" {
		t.Errorf("second agent should be untouched, got %q", got[1].Instructions)
	}
	if orig[0].Instructions != "ia" {
		t.Errorf("original mutated: %q", orig[0].Instructions)
	}

	same := orig.WithInstructions("")
	if same[0].Instructions != "ia" {
		t.Errorf("empty override should keep instructions, got %q", same[0].Instructions)
	}

	if out := (Set{}).WithInstructions("x"); len(out) != 0 {
		t.Errorf("empty set should stay empty")
	}
}

func TestReorderThenOverride(t *testing.T) {
	got := sample().Reorder("c").WithInstructions("custom")
	if got[0].Name != "c" || got[0].Instructions != "custom" {
		t.Errorf("override should land on the reordered primary, got %+v", got[0])
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := sample()
	cp := orig.Clone()
	cp[0].Handoffs[0] = "changed"
	if orig[0].Handoffs[0] != "b" {
		t.Error("Clone shares handoff slices")
	}
}

func TestValidate(t *testing.T) {
	if err := sample().Validate(); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}

	var dup *DuplicateAgentError
	if err := (Set{{Name: "x"}, {Name: "x"}}).Validate(); !errors.As(err, &dup) {
		t.Errorf("expected DuplicateAgentError, got %v", err)
	}

	var unk *UnknownHandoffError
	if err := (Set{{Name: "x", Handoffs: []string{"y"}}}).Validate(); !errors.As(err, &unk) {
		t.Errorf("expected UnknownHandoffError, got %v", err)
	}

	if err := (Set{}).Validate(); !errors.Is(err, ErrEmptySet) {
		t.Errorf("expected ErrEmptySet, got %v", err)
	}
	if err := (Set{{Name: ""}}).Validate(); !errors.Is(err, ErrUnnamedAgent) {
		t.Errorf("expected ErrUnnamedAgent, got %v", err)
	}
}

func TestRegistryBuiltin(t *testing.T) {
	r := NewRegistry()
	if r.DefaultKey() != "generalAI" {
		t.Errorf("DefaultKey = %q", r.DefaultKey())
	}
	set, ok := r.Get("generalAI")
	if !ok || len(set) != 1 {
		t.Fatalf("generalAI scenario missing: %v", set)
	}
	a := set[0]
	if a.Name != "generalAI" {
		t.Errorf("Name = %q", a.Name)
	}
	if a.HandoffDescription != "General AI assistant that can help with any topic" {
		t.Errorf("HandoffDescription = %q", a.HandoffDescription)
	}
	if !strings.Contains(a.Instructions, "Knowledge Base") {
		t.Error("instructions should carry the knowledge base section")
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	key, set := r.Resolve("nope")
	if key != "generalAI" || len(set) != 1 {
		t.Errorf("Resolve fallback = %q %v", key, set.Names())
	}
	key, _ = r.Resolve("")
	if key != "generalAI" {
		t.Errorf("empty key should resolve to default, got %q", key)
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	set, _ := r.Get("generalAI")
	set[0].Instructions = "tampered"
	again, _ := r.Get("generalAI")
	if again[0].Instructions == "tampered" {
		t.Error("Get must not expose stored scenario")
	}
}

func TestLoadFile(t *testing.T) {
	doc := `
default: support
scenarios:
  support:
    - name: triage
      instructions: route the caller
      handoffs: [billing]
    - name: billing
      instructions: handle invoices
      handoff_description: billing questions
      tools:
        - name: lookup_invoice
          description: find an invoice
`
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if r.DefaultKey() != "support" {
		t.Errorf("DefaultKey = %q", r.DefaultKey())
	}
	if got := r.Keys(); !reflect.DeepEqual(got, []string{"generalAI", "support"}) {
		t.Errorf("Keys = %v", got)
	}
	set, _ := r.Get("support")
	billing, ok := set.Find("billing")
	if !ok {
		t.Fatal("billing agent missing")
	}
	if billing.HandoffDescription != "billing questions" || len(billing.Tools) != 1 {
		t.Errorf("billing = %+v", billing)
	}
}

func TestLoadYAMLRejectsBadHandoff(t *testing.T) {
	doc := `
scenarios:
  broken:
    - name: solo
      handoffs: [ghost]
`
	r := NewRegistry()
	var unk *UnknownHandoffError
	if err := r.LoadYAML([]byte(doc)); !errors.As(err, &unk) {
		t.Fatalf("expected UnknownHandoffError, got %v", err)
	}
}

func TestLoadYAMLUnknownDefault(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadYAML([]byte("default: missing\n")); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("expected ErrUnknownScenario, got %v", err)
	}
}

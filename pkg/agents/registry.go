package agents

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultKey is the scenario used when none is requested.
const DefaultKey = GeneralAIKey

// Registry maps scenario keys to agent sets.
type Registry struct {
	mu         sync.RWMutex
	sets       map[string]Set
	defaultKey string
}

// NewRegistry returns a registry holding the built-in scenarios.
func NewRegistry() *Registry {
	return &Registry{
		sets:       map[string]Set{GeneralAIKey: GeneralAI()},
		defaultKey: DefaultKey,
	}
}

// Register adds or replaces a scenario.
func (r *Registry) Register(key string, set Set) error {
	if key == "" {
		return fmt.Errorf("agents: scenario key is required")
	}
	if err := set.Validate(); err != nil {
		return fmt.Errorf("scenario %q: %w", key, err)
	}
	r.mu.Lock()
	r.sets[key] = set.Clone()
	r.mu.Unlock()
	return nil
}

// SetDefault changes the fallback scenario key.
func (r *Registry) SetDefault(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sets[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, key)
	}
	r.defaultKey = key
	return nil
}

// DefaultKey returns the fallback scenario key.
func (r *Registry) DefaultKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultKey
}

// Get returns a copy of the scenario stored under key.
func (r *Registry) Get(key string) (Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[key]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

// Resolve returns the scenario for key, falling back to the default scenario
// for an empty or unknown key. The returned key is the one actually used.
func (r *Registry) Resolve(key string) (string, Set) {
	if set, ok := r.Get(key); ok {
		return key, set
	}
	def := r.DefaultKey()
	set, _ := r.Get(def)
	return def, set
}

// Keys returns the registered scenario keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sets))
	for k := range r.sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// File is the on-disk layout of an agents file.
//
//	default: support
//	scenarios:
//	  support:
//	    - name: triage
//	      instructions: ...
//	      handoffs: [billing]
type File struct {
	Default   string         `yaml:"default"`
	Scenarios map[string]Set `yaml:"scenarios"`
}

// LoadFile merges the scenarios defined in a YAML file into the registry.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read agents file: %w", err)
	}
	return r.LoadYAML(data)
}

// LoadYAML merges scenarios from YAML bytes.
func (r *Registry) LoadYAML(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse agents file: %w", err)
	}

	keys := make([]string, 0, len(f.Scenarios))
	for k := range f.Scenarios {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := r.Register(k, f.Scenarios[k]); err != nil {
			return err
		}
	}

	if f.Default != "" {
		return r.SetDefault(f.Default)
	}
	return nil
}

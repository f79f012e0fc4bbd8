// Package agents holds the agent configurations the realtime session runs with.
//
// A scenario is an ordered list of agents. The first agent in the list is the
// one the session starts with; the others are reachable through handoffs.
// Scenarios are static for the life of the process. The only change a caller
// makes is to produce a modified copy with Reorder or WithInstructions.
package agents

// Tool is a function an agent may call.
type Tool struct {
	// Name is the function name.
	Name string `yaml:"name" json:"name"`

	// Description explains what the tool does.
	Description string `yaml:"description" json:"description"`

	// Parameters is the JSON Schema for the function parameters.
	Parameters map[string]any `yaml:"parameters" json:"parameters,omitempty"`
}

// Agent is one named configuration of the assistant.
type Agent struct {
	Name               string   `yaml:"name" json:"name"`
	Instructions       string   `yaml:"instructions" json:"instructions"`
	HandoffDescription string   `yaml:"handoff_description" json:"handoff_description,omitempty"`
	Handoffs           []string `yaml:"handoffs" json:"handoffs"`
	Tools              []Tool   `yaml:"tools" json:"tools"`
}

// Set is an ordered list of agents.
type Set []Agent

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for i, a := range s {
		a.Handoffs = append([]string(nil), a.Handoffs...)
		a.Tools = append([]Tool(nil), a.Tools...)
		out[i] = a
	}
	return out
}

// Find returns the agent with the given name.
func (s Set) Find(name string) (Agent, bool) {
	for _, a := range s {
		if a.Name == name {
			return a, true
		}
	}
	return Agent{}, false
}

// Names returns agent names in order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, a := range s {
		names[i] = a.Name
	}
	return names
}

// Primary returns the first agent. ok is false for an empty set.
func (s Set) Primary() (Agent, bool) {
	if len(s) == 0 {
		return Agent{}, false
	}
	return s[0], true
}

// Reorder returns a copy with the named agent moved to the front. The rest
// keep their relative order. An unknown name, or one already first, yields
// an unchanged copy.
func (s Set) Reorder(selected string) Set {
	out := s.Clone()
	idx := -1
	for i, a := range out {
		if a.Name == selected {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return out
	}
	picked := out[idx]
	copy(out[1:idx+1], out[:idx])
	out[0] = picked
	return out
}

// WithInstructions returns a copy whose first agent uses text as its
// instructions. Empty text leaves the copy unchanged.
func (s Set) WithInstructions(text string) Set {
	out := s.Clone()
	if text == "" || len(out) == 0 {
		return out
	}
	out[0].Instructions = text
	return out
}

// Validate checks names are unique and every handoff points inside the set.
func (s Set) Validate() error {
	if len(s) == 0 {
		return ErrEmptySet
	}
	seen := make(map[string]bool, len(s))
	for _, a := range s {
		if a.Name == "" {
			return ErrUnnamedAgent
		}
		if seen[a.Name] {
			return &DuplicateAgentError{Name: a.Name}
		}
		seen[a.Name] = true
	}
	for _, a := range s {
		for _, h := range a.Handoffs {
			if !seen[h] {
				return &UnknownHandoffError{Agent: a.Name, Target: h}
			}
		}
	}
	return nil
}

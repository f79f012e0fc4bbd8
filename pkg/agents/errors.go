package agents

import (
	"errors"
	"fmt"
)

// Sentinel errors for the agents package.
var (
	// ErrEmptySet indicates a scenario with no agents.
	ErrEmptySet = errors.New("agents: scenario has no agents")

	// ErrUnnamedAgent indicates an agent without a name.
	ErrUnnamedAgent = errors.New("agents: agent name is required")

	// ErrUnknownScenario indicates a scenario key that is not registered.
	ErrUnknownScenario = errors.New("agents: unknown scenario")
)

// DuplicateAgentError reports two agents sharing a name inside one scenario.
type DuplicateAgentError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateAgentError) Error() string {
	return fmt.Sprintf("agents: duplicate agent name %q", e.Name)
}

// UnknownHandoffError reports a handoff to an agent outside the scenario.
type UnknownHandoffError struct {
	Agent  string
	Target string
}

// Error implements the error interface.
func (e *UnknownHandoffError) Error() string {
	return fmt.Sprintf("agents: %q hands off to unknown agent %q", e.Agent, e.Target)
}

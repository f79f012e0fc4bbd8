// agents.go implements "companion agents", listing the agent scenarios.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-companion/pkg/agents"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agent scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg := agents.NewRegistry()
		if cfg.AgentsFile != "" {
			if err := reg.LoadFile(cfg.AgentsFile); err != nil {
				return fmt.Errorf("loading %s: %w", cfg.AgentsFile, err)
			}
		}
		printAgents(cmd.OutOrStdout(), reg, cfg.AgentConfig)
		return nil
	},
}

func printAgents(w io.Writer, reg *agents.Registry, active string) {
	active, _ = reg.Resolve(active)
	for _, key := range reg.Keys() {
		set, _ := reg.Get(key)
		marker := " "
		if key == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-16s %s\n", marker, key, strings.Join(set.Names(), ", "))
	}
}

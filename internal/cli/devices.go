// devices.go implements "companion devices", a one-shot microphone listing.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-companion/internal/log"
	"github.com/teslashibe/go-companion/pkg/audioio"
	"github.com/teslashibe/go-companion/pkg/devices"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List microphones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log.InitWriter(cfg.LogLevel, cmd.ErrOrStderr())

		var lister devices.Lister = &devices.ALSALister{}
		if cfg.AudioBackend == string(audioio.BackendMock) {
			lister = devices.NewMockLister(devices.Device{ID: "default", Label: "Mock Microphone"})
		}
		return listDevices(cmd.Context(), lister, cmd.OutOrStdout())
	},
}

func listDevices(ctx context.Context, lister devices.Lister, w io.Writer) error {
	reg := devices.NewRegistry(lister, devices.WithLogger(log.L()))
	list, err := reg.Enumerate(ctx)
	if err != nil {
		if devices.IsPermissionError(err) {
			return fmt.Errorf("microphone access denied: %w", err)
		}
		return fmt.Errorf("listing microphones: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No microphones found")
		return nil
	}

	selected := reg.Selected()
	for _, d := range list {
		marker := " "
		if d.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-24s %s\n", marker, d.ID, d.DisplayLabel())
	}
	return nil
}

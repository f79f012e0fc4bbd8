// run.go implements "companion run", the client with its terminal UI.
package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-companion/internal/log"
	"github.com/teslashibe/go-companion/pkg/companion"
	"github.com/teslashibe/go-companion/pkg/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the companion client",
	Long: `Run the client: realtime voice session, transcript, screen analysis
and the Q&A panel. The terminal UI needs an interactive terminal; use
--headless to run with only the dashboard.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	headlessFlag  bool
	logFileFlag   string
	transportFlag string
	backendFlag   string
	dashboardFlag string
	scenarioFlag  string
)

func init() {
	runCmd.Flags().BoolVar(&headlessFlag, "headless", false, "Run without the terminal UI and start listening immediately")
	runCmd.Flags().StringVar(&logFileFlag, "log-file", "", "Append logs to this file (logs are discarded under the UI otherwise)")
	runCmd.Flags().StringVar(&transportFlag, "transport", "", "Realtime transport: webrtc or websocket (overrides COMPANION_TRANSPORT)")
	runCmd.Flags().StringVar(&backendFlag, "backend", "", "Backend base URL (overrides COMPANION_BACKEND_URL)")
	runCmd.Flags().StringVar(&dashboardFlag, "dashboard", "", "Serve the local dashboard on this address (overrides DASHBOARD_ADDR)")
	runCmd.Flags().StringVar(&scenarioFlag, "scenario", "", "Agent scenario key (overrides AGENT_CONFIG)")
}

func runRun(cmd *cobra.Command, args []string) error {
	if !headlessFlag && !ui.IsTTY() {
		return errors.New("companion run needs an interactive terminal; pass --headless to run without the UI")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if transportFlag != "" {
		cfg.Transport = transportFlag
	}
	if backendFlag != "" {
		cfg.BackendURL = backendFlag
	}
	if dashboardFlag != "" {
		cfg.DashboardAddr = dashboardFlag
	}
	if scenarioFlag != "" {
		cfg.AgentConfig = scenarioFlag
	}

	// The UI owns stdout. Logs go to --log-file, or stdout when headless.
	switch {
	case logFileFlag != "":
		f, err := os.OpenFile(logFileFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		log.InitWriter(cfg.LogLevel, f)
	case headlessFlag:
		log.Init(cfg.LogLevel)
	default:
		log.InitWriter(cfg.LogLevel, nil)
	}

	app, err := companion.New(cfg,
		companion.WithLogger(log.L()),
		companion.WithHeadless(headlessFlag),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Init(ctx); err != nil {
		app.Shutdown()
		return err
	}
	defer app.Shutdown()
	return app.Run(ctx)
}

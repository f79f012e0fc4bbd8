// serve.go implements "companion serve", the backend proxy.
package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-companion/internal/log"
	"github.com/teslashibe/go-companion/pkg/inference"
	"github.com/teslashibe/go-companion/pkg/proxy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backend proxy",
	Long: `Serve the backend the client talks to. It holds OPENAI_API_KEY and
exposes /api/session, /api/vision and /api/responses.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddrFlag string

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (overrides COMPANION_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddrFlag != "" {
		cfg.Addr = serveAddrFlag
	}

	log.Init(cfg.LogLevel)
	logger := log.L()
	if cfg.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; upstream calls will fail")
	}

	upstream, err := inference.NewClient(
		inference.WithBaseURL(cfg.OpenAIBaseURL),
		inference.WithAPIKey(cfg.APIKey),
		inference.WithRealtimeModel(cfg.RealtimeModel),
		inference.WithVisionModel(cfg.VisionModel),
		inference.WithTimeout(cfg.UpstreamTimeout),
		inference.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("creating upstream client: %w", err)
	}
	defer upstream.Close()

	srv := proxy.NewServer(upstream,
		proxy.WithLogger(logger),
		proxy.WithRealtimeModel(cfg.RealtimeModel),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, cfg.Addr)
}

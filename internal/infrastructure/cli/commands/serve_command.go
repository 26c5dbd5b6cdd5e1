package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/gitscope/internal/app"
	"github.com/doeshing/gitscope/internal/infrastructure/httpserver"
)

// NewServeCommand creates the serve command
func NewServeCommand(container *app.Container) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the insight HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := container.Config
			if addr == "" {
				addr = cfg.Server.Addr
			}

			startCheckoutSweeper(container)

			server := httpserver.New(
				container.Orchestrator,
				container.Broadcaster,
				container.Logger,
				time.Duration(cfg.Server.HeartbeatSeconds)*time.Second,
			)
			return server.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

// startCheckoutSweeper removes checkouts untouched for longer than the
// configured age, once at startup and then hourly.
func startCheckoutSweeper(container *app.Container) {
	maxAge := time.Duration(container.Config.Clone.SweepMaxAgeHours) * time.Hour
	if maxAge <= 0 {
		return
	}
	go func() {
		sweep := func() {
			if err := container.Cloner.CleanupOldCheckouts(maxAge); err != nil {
				container.Logger.Warn("checkout sweep failed", map[string]interface{}{"error": err.Error()})
			}
		}
		sweep()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			sweep()
		}
	}()
}

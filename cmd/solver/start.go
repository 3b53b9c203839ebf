package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sedaprotocol/seda-push-solver/internal/config"
	"github.com/sedaprotocol/seda-push-solver/internal/logging"
)

// NewStartCmd builds the "start" subcommand: loads configuration, wires
// every component, and blocks until SIGINT/SIGTERM.
func NewStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the solver daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			solver, err := NewSolver(ctx, logger, cfg)
			if err != nil {
				return err
			}

			logger.Info("solver starting",
				"seda_network", cfg.Seda.Network,
				"evm_networks", len(cfg.EvmNetworks),
				"health_addr", cfg.HealthAddr,
			)

			return solver.Run(ctx)
		},
	}
}

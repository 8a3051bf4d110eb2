// Command vnsd is the VNS broker daemon. It wires the property
// registry, access controller, HAL gateway, and the rest of the
// broker's collaborators together and keeps the event dispatch worker
// running until signaled to stop.
//
// This repo ships no physical HAL driver (that's an external
// collaborator, see spec §1); vnsd runs against internal/nullhal by
// default and can install the reference mock HAL at startup with
// --mock, the same double cmd/vnsctl uses to demonstrate the swap
// protocol interactively.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vns-go/vns/internal/mockhal"
	"github.com/vns-go/vns/internal/wiring"
	"github.com/vns-go/vns/pkg/config"
	"github.com/vns-go/vns/pkg/vnslog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:   "vnsd",
		Short: "Run the VNS broker daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("policy-file", defaults.PolicyFile, "path to the access policy YAML document")
	flags.Duration("dispatch-interval", defaults.DispatchInterval, "minimum spacing between event dispatch wakeups")
	flags.Duration("retry-wait", defaults.RetryWait, "delay between retries of a not-ready HAL get/set")
	flags.Int("max-retries", defaults.MaxRetries, "retry budget for a not-ready HAL get/set")
	flags.String("log-level", defaults.LogLevel, "zerolog level: debug, info, warn, error")
	flags.Bool("mock", defaults.Mock, "install the reference mock HAL at startup")

	v.BindPFlags(flags)
	v.SetEnvPrefix("vnsd")
	v.AutomaticEnv()

	return cmd
}

func run(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("vnsd: invalid log level %q: %w", cfg.LogLevel, err)
	}
	zl := zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()
	logger := vnslog.NewZerologAdapter(zl)

	b, err := wiring.Build(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Mock {
		mock := mockhal.New(wiring.DemoMockProperties())
		b.StartMocking(mock)
		zl.Info().Msg("started with reference mock HAL installed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	zl.Info().Str("policy_file", cfg.PolicyFile).Dur("dispatch_interval", cfg.DispatchInterval).Msg("vnsd started")

	sig := <-sigCh
	zl.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		zl.Warn().Msg("dispatch worker did not stop within grace period")
	}
	b.Stop()

	return nil
}

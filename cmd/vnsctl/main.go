// Command vnsctl is an operator CLI exercising the broker's diagnostic
// and mock-swap operations directly against an in-process Broker.
//
// The wire transport carrying client calls to a running vnsd is out of
// this repo's scope (see spec §1), so vnsctl cannot attach to a live
// daemon; each invocation builds its own Broker, runs its dispatch
// worker just long enough to perform the requested operation, prints a
// dump, and exits. The subcommands exercise Subscribe, InjectEvent,
// StartErrorListening, InjectHalError, StartMocking and Dump end to end;
// Get, Set and Unsubscribe have no subcommand.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vns-go/vns/internal/mockhal"
	"github.com/vns-go/vns/internal/wiring"
	"github.com/vns-go/vns/pkg/broker"
	"github.com/vns-go/vns/pkg/client"
	"github.com/vns-go/vns/pkg/config"
	"github.com/vns-go/vns/pkg/value"
)

// settleDelay gives the dispatch worker one quantum to deliver whatever
// a subcommand just injected before the process tears the broker down.
const settleDelay = 30 * time.Millisecond

// cliListener prints every callback it receives, standing in for a
// real client connection for the duration of one vnsctl invocation.
type cliListener struct{}

func (cliListener) OnEvents(batch []value.Value) {
	for _, v := range batch {
		fmt.Printf("event: prop=0x%x zone=0x%x\n", v.Prop, v.Zone)
	}
}

func (cliListener) OnHalError(code, prop, operation int32) {
	fmt.Printf("hal error: code=%d prop=0x%x operation=%d\n", code, prop, operation)
}

func (cliListener) OnHalRestart(mocking bool) {
	fmt.Printf("hal restart: mocking=%v\n", mocking)
}

func (cliListener) OnPropertySet(v value.Value) {
	fmt.Printf("set observed: prop=0x%x zone=0x%x\n", v.Prop, v.Zone)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	defaults := config.Defaults()

	root := &cobra.Command{
		Use:   "vnsctl",
		Short: "Inspect and exercise a VNS broker instance",
	}

	flags := root.PersistentFlags()
	flags.String("policy-file", defaults.PolicyFile, "path to the access policy YAML document")
	v.BindPFlags(flags)

	root.AddCommand(newDumpCmd(v))
	root.AddCommand(newMockCmd(v))
	root.AddCommand(newInjectEventCmd(v))
	root.AddCommand(newInjectErrorCmd(v))

	return root
}

// withRunningBroker builds a Broker from v, starts its dispatch worker,
// invokes fn, gives the worker settleDelay to finish dispatching, stops
// it, and prints a final dump.
func withRunningBroker(v *viper.Viper, fn func(b *broker.Broker) error) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	b, err := wiring.Build(cfg, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()

	fnErr := fn(b)

	time.Sleep(settleDelay)
	cancel()
	<-done
	b.Stop()

	b.Dump(os.Stdout)
	return fnErr
}

func newDumpCmd(v *viper.Viper) *cobra.Command {
	var installMock bool
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a diagnostic dump of a freshly built broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunningBroker(v, func(b *broker.Broker) error {
				if installMock {
					b.StartMocking(mockhal.New(wiring.DemoMockProperties()))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&installMock, "mock", false, "install the reference mock HAL before dumping")
	return cmd
}

func newMockCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "mock",
		Short: "Install the reference mock HAL and print the resulting dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunningBroker(v, func(b *broker.Broker) error {
				b.StartMocking(mockhal.New(wiring.DemoMockProperties()))
				return nil
			})
		},
	}
}

func newInjectEventCmd(v *viper.Viper) *cobra.Command {
	var prop, zone int32
	var floatVal float64

	cmd := &cobra.Command{
		Use:   "inject-event",
		Short: "Subscribe a demo client and inject a single event for prop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunningBroker(v, func(b *broker.Broker) error {
				handle := client.Handle("vnsctl-inject-event")
				if err := b.Subscribe(handle, 1, 0, cliListener{}, prop, 0, zone, client.FlagHalEvent); err != nil {
					return fmt.Errorf("vnsctl: subscribe failed: %w", err)
				}
				b.InjectEvent(value.NewValue(prop, zone, value.Float, 0, float32(floatVal)))
				return nil
			})
		},
	}
	cmd.Flags().Int32Var(&prop, "prop", 0x1, "property id to inject an event for")
	cmd.Flags().Int32Var(&zone, "zone", 0, "zone bit for the injected event")
	cmd.Flags().Float64Var(&floatVal, "value", 0, "float32 payload for the injected event")
	return cmd
}

func newInjectErrorCmd(v *viper.Viper) *cobra.Command {
	var code, prop, operation int32

	cmd := &cobra.Command{
		Use:   "inject-error",
		Short: "Subscribe a demo error listener and inject a single HAL error",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunningBroker(v, func(b *broker.Broker) error {
				handle := client.Handle("vnsctl-inject-error")
				b.StartErrorListening(handle, 1, 0, cliListener{})
				b.InjectHalError(code, prop, operation)
				return nil
			})
		},
	}
	cmd.Flags().Int32Var(&code, "code", 1, "HAL error code")
	cmd.Flags().Int32Var(&prop, "prop", 0, "property id the error concerns, 0 for global")
	cmd.Flags().Int32Var(&operation, "operation", 0, "HAL operation id that failed")
	return cmd
}

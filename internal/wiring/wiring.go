// Package wiring builds a fully-constructed Broker from a
// pkg/config.Config, shared by cmd/vnsd (the long-running daemon) and
// cmd/vnsctl (the operator CLI). Both binaries need the exact same
// collaborator graph; this is the single place that assembles it.
package wiring

import (
	"fmt"

	"github.com/vns-go/vns/internal/nullhal"
	"github.com/vns-go/vns/pkg/access"
	"github.com/vns-go/vns/pkg/broker"
	"github.com/vns-go/vns/pkg/config"
	"github.com/vns-go/vns/pkg/value"
	"github.com/vns-go/vns/pkg/vnslog"
)

// DemoInternalProperties is a small compiled-in internal property list
// used when no real driver is linked in. Property 0x1 doubles as the
// default --prop of cmd/vnsctl's inject-event subcommand.
func DemoInternalProperties() []value.Config {
	return []value.Config{{
		Prop:       0x1,
		ValueType:  value.Int32,
		Access:     value.ReadWrite,
		ChangeMode: value.OnSet,
	}}
}

// DemoMockProperties is the property list internal/mockhal reports once
// installed via cmd/vnsctl's mock subcommand.
func DemoMockProperties() []value.Config {
	return []value.Config{
		{
			Prop:          0x100,
			ValueType:     value.Float,
			Access:        value.Read,
			ChangeMode:    value.Continuous,
			MinSampleRate: 1,
			MaxSampleRate: 50,
		},
		{
			Prop:       0x200,
			ValueType:  value.ZonedFloat,
			Access:     value.ReadWrite,
			ChangeMode: value.OnChange,
			ZoneFlags:  0b1111,
		},
	}
}

// Build loads the access policy named by cfg and constructs a Broker
// wired to nullhal (the repo ships no physical driver) with logger
// attached. Build does not read cfg.Mock; installing the reference mock
// is up to the caller (cmd/vnsd does so when cfg.Mock is set).
func Build(cfg config.Config, logger vnslog.Logger) (*broker.Broker, error) {
	acl, err := access.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("wiring: failed to load access policy: %w", err)
	}

	b := broker.New(nullhal.New(), DemoInternalProperties(), acl, broker.Config{
		DispatchInterval: cfg.DispatchInterval,
		RetryWait:        cfg.RetryWait,
		MaxRetries:       cfg.MaxRetries,
	}, logger)

	return b, nil
}

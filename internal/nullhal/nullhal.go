// Package nullhal is the zero-property stand-in for the real vehicle
// HAL driver cmd/vnsd links against when no physical driver is present.
// The driver itself is an external collaborator outside this repo's
// scope; nullhal lets the daemon start and serve the mock protocol
// (cmd/vnsctl's mock subcommand, internal/mockhal) without one.
package nullhal

import (
	"github.com/vns-go/vns/pkg/value"
	"github.com/vns-go/vns/pkg/vnserr"
)

// HAL implements hal.RealHAL with no properties and no live driver
// underneath. Every get/set/subscribe reports NotReady, matching how a
// driver that failed to attach to hardware would behave.
type HAL struct{}

// New creates a HAL with an empty property list.
func New() *HAL { return &HAL{} }

func (*HAL) Init(eventCb func(value.Value), errorCb func(code, prop, operation int32)) error {
	return nil
}

func (*HAL) Release() {}

func (*HAL) ListProperties() []value.Config { return nil }

func (*HAL) Get(v *value.Value) error { return vnserr.ErrNotReady }

func (*HAL) Set(v *value.Value) error { return vnserr.ErrNotReady }

func (*HAL) Subscribe(prop int32, rate float64, zones int32) error { return vnserr.ErrNotReady }

func (*HAL) Unsubscribe(prop int32) error { return vnserr.ErrNotReady }

func (*HAL) ReleaseMemoryFromGet(v *value.Value) {}

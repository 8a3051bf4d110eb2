// Package hal is the unified adaptor over the real vehicle HAL driver
// and a mock double (C7 of the broker). It retries get/set on NotReady,
// runs the mock swap protocol, and routes event/error callbacks into
// the rest of the broker without ever holding broker-level state
// itself — callers own the pipeline and invalidation they wire through
// Gateway's callbacks.
package hal

import (
	"time"

	"github.com/vns-go/vns/pkg/value"
)

// defaultGetSetWait and defaultMaxRetries are the fallback retry wait
// and retry budget used when Config leaves either unset.
const (
	defaultGetSetWait = 2 * time.Millisecond
	defaultMaxRetries = 5
)

// RealHAL is the real vehicle HAL driver contract.
type RealHAL interface {
	Init(eventCb func(value.Value), errorCb func(code, prop, operation int32)) error
	Release()
	ListProperties() []value.Config
	Get(v *value.Value) error
	Set(v *value.Value) error
	Subscribe(prop int32, rate float64, zones int32) error
	Unsubscribe(prop int32) error
	ReleaseMemoryFromGet(v *value.Value)
}

// MockHAL is the test-double contract a mock HAL must satisfy to be
// installed via Gateway.StartMocking. Handle identifies the mock for
// death-watch purposes; internal/mockhal returns a uuid.UUID value
// minted when the mock is created.
type MockHAL interface {
	Handle() any
	OnListProperties() []value.Config
	OnPropertyGet(v *value.Value) error
	OnPropertySet(v value.Value) error
	OnPropertySubscribe(prop int32, rate float64, zones int32) error
	OnPropertyUnsubscribe(prop int32) error
}

package client

import "github.com/vns-go/vns/pkg/value"

// Handle identifies a client's transport connection. It must be
// comparable so it can key maps and back a death watch; callers
// typically hand in a connection id minted by the transport (the
// retrieved pack's pkg/transport.ServerConn keys its connection set the
// same way, by pointer identity rather than by value).
type Handle any

// Listener is the one-way callback surface the broker holds for each
// registered client. Implementations must not block for long: delivery
// happens from the event-pipeline worker or from the caller's own
// thread during a set fan-out.
type Listener interface {
	// OnEvents delivers a batch of coalesced property values.
	OnEvents(batch []value.Value)
	// OnHalError reports a HAL error to clients monitoring errors.
	OnHalError(code int32, prop int32, operation int32)
	// OnHalRestart notifies a monitoring client that the active HAL
	// was swapped; mocking reports whether the new HAL is a mock.
	OnHalRestart(mocking bool)
	// OnPropertySet notifies a SET_CALL subscriber that prop was written.
	OnPropertySet(v value.Value)
}

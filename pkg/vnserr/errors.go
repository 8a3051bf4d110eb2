// Package vnserr defines the VNS error taxonomy.
//
// Recovery policy: NotReady is retried locally inside Get/Set and
// reaches the caller only once the retry budget is spent. Every other
// sentinel below is surfaced to the caller. Errors from the real HAL
// driver are passed through as-is; any error from a mock HAL is
// reported as ErrMockRejected.
package vnserr

import (
	"errors"
	"fmt"
)

// Sentinel errors covering the broker's error taxonomy.
var (
	// ErrPermissionDenied is returned when the access controller refuses
	// a read or write for the calling uid.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrBadValue is returned when a capability check fails: the property
	// is not gettable/settable/subscribable, the value type doesn't match,
	// zones are out of range, or SET_CALL was requested on a read-only
	// property.
	ErrBadValue = errors.New("bad value")

	// ErrNotReady is returned by a HAL driver that is not ready. Get/Set
	// retry it internally and surface it only after the budget runs out;
	// subscribe/unsubscribe return it as the driver reports it.
	ErrNotReady = errors.New("hal not ready")

	// ErrNoMemory names allocation failure of a client or subscriber
	// set. No code path in this module returns it.
	ErrNoMemory = errors.New("no memory")

	// ErrMockRejected is returned when the active mock HAL returns a
	// non-success status for get/set/subscribe/unsubscribe.
	ErrMockRejected = errors.New("mock rejected")
)

// HalError describes an error the HAL reports through its error
// callback (or one injected for testing); the event pipeline delivers
// it to error listeners. Property 0 means the error is global, not
// tied to one property.
type HalError struct {
	Code      int32
	Property  int32
	Operation int32
}

func (e *HalError) Error() string {
	return fmt.Sprintf("hal error %d (property=0x%x, operation=%d)", e.Code, e.Property, e.Operation)
}

// NotFound wraps ErrBadValue with the offending property id for easier
// diagnosis in logs; errors.Is(err, ErrBadValue) still holds.
func NotFound(prop int32) error {
	return fmt.Errorf("%w: property 0x%x not found", ErrBadValue, prop)
}

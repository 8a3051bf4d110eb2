// Package value defines the VNS property data model: configuration
// records, the type-tagged property value, and the small set of enums
// that drive capability and zone checks elsewhere in the broker.
package value

// ValueType identifies the payload carried by a PropertyValue and, for
// zoned variants, that the property is subject to zone masking.
type ValueType int32

const (
	Int32 ValueType = iota + 1
	Float
	Bool
	Int64
	Vec2
	Vec3
	String
	Bytes
	ZonedInt32
	ZonedFloat
	ZonedBool
	ZonedInt32Vec2
	ZonedInt32Vec3
	ZonedFloatVec2
	ZonedFloatVec3
)

// IsZoned reports whether t is one of the zoned value type variants.
func (t ValueType) IsZoned() bool {
	switch t {
	case ZonedInt32, ZonedFloat, ZonedBool, ZonedInt32Vec2, ZonedInt32Vec3, ZonedFloatVec2, ZonedFloatVec3:
		return true
	}
	return false
}

// Access is a bitmask of the operations a property supports.
type Access uint8

const (
	Read Access = 1 << iota
	Write
)

const ReadWrite = Read | Write

// ChangeMode describes how a property's value evolves over time.
type ChangeMode uint8

const (
	// Static properties never change after initial configuration.
	Static ChangeMode = iota
	// OnChange properties are pushed to subscribers whenever they change.
	OnChange
	// OnSet properties are pushed only in reaction to a set call.
	OnSet
	// Continuous properties are sampled at a negotiated rate.
	Continuous
	// Poll properties may only be read on demand, never subscribed to.
	Poll
)

// IsSampleRateFixed reports whether change mode forces sample rate to zero,
// i.e. the mode is push-driven rather than poll/sample-driven.
func (m ChangeMode) IsSampleRateFixed() bool {
	return m == OnChange || m == OnSet
}

// Config is the immutable per-property configuration record. Real
// properties are populated from the HAL's ListProperties; internal
// properties are compiled in.
type Config struct {
	Prop          int32
	ValueType     ValueType
	Access        Access
	ChangeMode    ChangeMode
	MinSampleRate float64
	MaxSampleRate float64
	ZoneFlags     int32
}

// IsZoned reports whether the property's value type is a zoned variant.
func (c *Config) IsZoned() bool {
	return c.ValueType.IsZoned()
}

// Value is a single property sample: identity, zone, timestamp, and a
// type-tagged payload. Values flowing through the event pipeline are
// uniquely owned by the pipeline until dispatch; values handed to a
// client are always copies (see Value.Clone).
type Value struct {
	Prop      int32
	Zone      int32
	ValueType ValueType
	Timestamp int64 // nanoseconds
	payload   any
}

// NewValue constructs a Value. payload should be of the Go type the
// matching typed accessor below (Int32Val, FloatVal, ...) expects for
// valueType; nothing checks that it is.
func NewValue(prop, zone int32, valueType ValueType, timestampNs int64, payload any) Value {
	return Value{Prop: prop, Zone: zone, ValueType: valueType, Timestamp: timestampNs, payload: payload}
}

// Clone returns a deep-enough copy for handing to a client: the payload
// is immutable for all scalar types and vectors; byte slices and strings
// are copied explicitly so a client mutating its copy cannot affect the
// pipeline's or another client's view.
func (v Value) Clone() Value {
	switch p := v.payload.(type) {
	case []byte:
		cp := make([]byte, len(p))
		copy(cp, p)
		v.payload = cp
	}
	return v
}

// Int32Val returns the payload as int32.
func (v Value) Int32Val() (int32, bool) { x, ok := v.payload.(int32); return x, ok }

// FloatVal returns the payload as float32.
func (v Value) FloatVal() (float32, bool) { x, ok := v.payload.(float32); return x, ok }

// BoolVal returns the payload as bool.
func (v Value) BoolVal() (bool, bool) { x, ok := v.payload.(bool); return x, ok }

// Int64Val returns the payload as int64.
func (v Value) Int64Val() (int64, bool) { x, ok := v.payload.(int64); return x, ok }

// Vec2Val returns the payload as a [2]float32.
func (v Value) Vec2Val() ([2]float32, bool) { x, ok := v.payload.([2]float32); return x, ok }

// Vec3Val returns the payload as a [3]float32.
func (v Value) Vec3Val() ([3]float32, bool) { x, ok := v.payload.([3]float32); return x, ok }

// StringVal returns the payload as string.
func (v Value) StringVal() (string, bool) { x, ok := v.payload.(string); return x, ok }

// BytesVal returns the payload as []byte.
func (v Value) BytesVal() ([]byte, bool) { x, ok := v.payload.([]byte); return x, ok }

// WithPayload returns a copy of v with the payload replaced. Used by
// HAL/mock adaptors when decoding a raw sample into a Value.
func (v Value) WithPayload(payload any) Value {
	v.payload = payload
	return v
}

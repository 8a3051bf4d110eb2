// Package subscription turns many per-client subscriptions into a
// single aggregate HAL subscription per property (C5 of the broker).
// Its locking shape, a coarse mutex around the property-to-clients
// index and derived aggregates, released before any HAL or client
// call, follows the same capture-under-lock-act-outside-it discipline
// used elsewhere in this codebase around per-id maps.
package subscription

import (
	"fmt"
	"sync"

	"github.com/vns-go/vns/pkg/access"
	"github.com/vns-go/vns/pkg/client"
	"github.com/vns-go/vns/pkg/property"
	"github.com/vns-go/vns/pkg/value"
	"github.com/vns-go/vns/pkg/vnserr"
	"github.com/vns-go/vns/pkg/vnslog"
)

// Hal is the subset of the HAL gateway contract the subscription
// manager needs: pushing the aggregate subscription down and fetching
// a value for auto_get synthesis.
type Hal interface {
	Subscribe(prop int32, rate float64, zones int32) error
	Unsubscribe(prop int32) error
	Get(v *value.Value) error
}

// EventSink accepts a synthesized auto_get value for pipeline delivery.
type EventSink interface {
	HandleEvent(v value.Value)
}

// Aggregate is the per-property subscription derived from every
// contributing client's SubscriptionInfo.
type Aggregate struct {
	Rate  float64
	Zones int32
	Flags client.Flags
}

// Manager owns the property-to-clients index, the derived aggregates,
// and the set of properties with at least one SET_CALL subscriber.
type Manager struct {
	mu sync.Mutex

	propertyToClients map[int32]map[client.Handle]struct{}
	aggregates        map[int32]Aggregate
	setCallProps      map[int32]struct{}

	registry *client.Registry
	props    *property.Registry
	acl      *access.Controller
	hal      Hal
	pipeline EventSink
	logger   vnslog.Logger
}

// New creates a Manager wired to its collaborators.
func New(registry *client.Registry, props *property.Registry, acl *access.Controller, hal Hal, pipeline EventSink, logger vnslog.Logger) *Manager {
	if logger == nil {
		logger = vnslog.NoopLogger{}
	}
	return &Manager{
		propertyToClients: make(map[int32]map[client.Handle]struct{}),
		aggregates:         make(map[int32]Aggregate),
		setCallProps:       make(map[int32]struct{}),
		registry:           registry,
		props:              props,
		acl:                acl,
		hal:                hal,
		pipeline:           pipeline,
		logger:             logger,
	}
}

// Subscribe installs or replaces handle's subscription to prop and
// recomputes the aggregate, pushing it to the HAL when it changed.
func (m *Manager) Subscribe(handle client.Handle, pid, uid int32, listener client.Listener, prop int32, rate float64, zones int32, flags client.Flags) error {
	cfg, ok := m.props.Find(prop)
	if !ok {
		return vnserr.NotFound(prop)
	}
	if !m.props.IsSubscribable(prop) {
		return fmt.Errorf("%w: property 0x%x is not subscribable", vnserr.ErrBadValue, prop)
	}
	if flags&client.FlagSetCall != 0 && cfg.Access&value.Write == 0 {
		return fmt.Errorf("%w: SET_CALL requires write access on property 0x%x", vnserr.ErrBadValue, prop)
	}

	rate = normalizeRate(cfg, rate)
	zones, err := normalizeZones(cfg, zones)
	if err != nil {
		return err
	}

	rec := m.registry.GetOrCreate(handle, pid, uid, listener, m.HandleClientDeath)
	rec.AddSubscription(prop, client.SubscriptionInfo{SampleRate: rate, Zones: zones, Flags: flags})

	internal := m.props.IsInternal(prop)

	m.mu.Lock()
	set, ok := m.propertyToClients[prop]
	if !ok {
		set = make(map[client.Handle]struct{})
		m.propertyToClients[prop] = set
	}
	set[handle] = struct{}{}

	newAgg := m.computeAggregateLocked(prop)
	oldAgg, hadAgg := m.aggregates[prop]
	needResubscribe := !hadAgg || newAgg.Rate > oldAgg.Rate || newAgg.Zones != oldAgg.Zones || newAgg.Flags != oldAgg.Flags
	m.aggregates[prop] = newAgg

	if flags&client.FlagSetCall != 0 {
		m.setCallProps[prop] = struct{}{}
	} else if !m.anySetCallSubscriberLocked(prop) {
		delete(m.setCallProps, prop)
	}
	m.mu.Unlock()

	var halErr error
	if needResubscribe && !internal {
		halErr = m.hal.Subscribe(prop, newAgg.Rate, newAgg.Zones)
		m.logger.Log(vnslog.Event{Category: vnslog.CategorySubscribe, Property: prop, Err: halErr})
	}

	if halErr == nil && !internal && m.acl.IsAutoGetEnabled(prop) && cfg.ChangeMode.IsSampleRateFixed() {
		m.synthesizeAutoGet(cfg, zones)
	}

	return halErr
}

// synthesizeAutoGet fetches the current value for each relevant zone
// and feeds it into the pipeline as if the HAL had pushed it.
func (m *Manager) synthesizeAutoGet(cfg value.Config, requestedZones int32) {
	zoneSource := requestedZones
	if zoneSource == 0 {
		zoneSource = cfg.ZoneFlags
	}
	for _, zone := range value.ZoneBits(zoneSource) {
		v := value.NewValue(cfg.Prop, zone, cfg.ValueType, 0, nil)
		if err := m.hal.Get(&v); err != nil {
			if err == vnserr.ErrNotReady {
				continue
			}
			continue
		}
		m.pipeline.HandleEvent(v)
	}
}

// Unsubscribe removes handle's subscription to prop and drops the client
// record entirely once it has no remaining subscription or monitor. If
// no subscriber of prop remains, the aggregate is dropped and the HAL is
// unsubscribed; otherwise the stored aggregate is left unchanged (it is
// not recomputed from the remaining subscribers).
func (m *Manager) Unsubscribe(handle client.Handle, prop int32) error {
	rec, ok := m.registry.Get(handle)
	if !ok {
		return nil
	}
	stillActive := rec.RemoveSubscription(prop)
	m.dropFromPropertyIndex(handle, prop)
	if !stillActive {
		m.registry.Remove(handle)
	}
	return nil
}

// HandleClientDeath is installed as the death-watch callback for every
// client record, including ones created outside Subscribe (error and
// HAL-restart monitors). It unsubscribes the dead client from every
// property it held and drops its record unconditionally.
func (m *Manager) HandleClientDeath(handle client.Handle) {
	rec, ok := m.registry.Get(handle)
	if !ok {
		return
	}
	for _, prop := range rec.Subscriptions() {
		m.dropFromPropertyIndex(handle, prop)
	}
	m.registry.Remove(handle)
}

func (m *Manager) dropFromPropertyIndex(handle client.Handle, prop int32) {
	internal := m.props.IsInternal(prop)

	m.mu.Lock()
	set, ok := m.propertyToClients[prop]
	if ok {
		delete(set, handle)
	}
	empty := !ok || len(set) == 0
	if empty {
		delete(m.propertyToClients, prop)
		delete(m.aggregates, prop)
	}
	if !m.anySetCallSubscriberLocked(prop) {
		delete(m.setCallProps, prop)
	}
	m.mu.Unlock()

	if empty && !internal {
		_ = m.hal.Unsubscribe(prop)
		m.logger.Log(vnslog.Event{Category: vnslog.CategoryUnsubscribe, Property: prop})
	}
}

// anySetCallSubscriberLocked reports whether any remaining subscriber
// of prop still has the SET_CALL flag. Callers must hold m.mu.
func (m *Manager) anySetCallSubscriberLocked(prop int32) bool {
	set, ok := m.propertyToClients[prop]
	if !ok {
		return false
	}
	for handle := range set {
		rec, ok := m.registry.Get(handle)
		if !ok {
			continue
		}
		if info, ok := rec.Subscription(prop); ok && info.Flags&client.FlagSetCall != 0 {
			return true
		}
	}
	return false
}

// computeAggregateLocked derives the current aggregate for prop from
// every contributing client's SubscriptionInfo. Callers must hold m.mu.
func (m *Manager) computeAggregateLocked(prop int32) Aggregate {
	var agg Aggregate
	zeroZone := false
	for handle := range m.propertyToClients[prop] {
		rec, ok := m.registry.Get(handle)
		if !ok {
			continue
		}
		info, ok := rec.Subscription(prop)
		if !ok {
			continue
		}
		if info.SampleRate > agg.Rate {
			agg.Rate = info.SampleRate
		}
		if info.Zones == 0 {
			zeroZone = true
		} else {
			agg.Zones |= info.Zones
		}
		agg.Flags |= info.Flags
	}
	if zeroZone {
		agg.Zones = 0
	}
	return agg
}

// Subscribers returns the handles currently subscribed to prop with
// HAL_EVENT set, used by the pipeline to fan out events.
func (m *Manager) Subscribers(prop int32) []client.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.propertyToClients[prop]
	if !ok {
		return nil
	}
	out := make([]client.Handle, 0, len(set))
	for handle := range set {
		rec, ok := m.registry.Get(handle)
		if !ok {
			continue
		}
		if info, ok := rec.Subscription(prop); ok && info.Flags&client.FlagHalEvent != 0 {
			out = append(out, handle)
		}
	}
	return out
}

// AllSubscribers returns every handle subscribed to prop regardless of
// flags, used by Dump to list subscriber pids.
func (m *Manager) AllSubscribers(prop int32) []client.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.propertyToClients[prop]
	if !ok {
		return nil
	}
	out := make([]client.Handle, 0, len(set))
	for handle := range set {
		out = append(out, handle)
	}
	return out
}

// SubscribedProperties returns every property id with at least one
// subscriber, used by Dump to enumerate what to print.
func (m *Manager) SubscribedProperties() []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]int32, 0, len(m.propertyToClients))
	for prop := range m.propertyToClients {
		out = append(out, prop)
	}
	return out
}

// SetCallSubscribers returns the handles subscribed to prop with
// SET_CALL set whose zone mask overlaps zone (or equals it exactly).
func (m *Manager) SetCallSubscribers(prop int32, zone int32) []client.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.propertyToClients[prop]
	if !ok {
		return nil
	}
	out := make([]client.Handle, 0, len(set))
	for handle := range set {
		rec, ok := m.registry.Get(handle)
		if !ok {
			continue
		}
		info, ok := rec.Subscription(prop)
		if !ok || info.Flags&client.FlagSetCall == 0 {
			continue
		}
		if info.Zones == zone || (info.Zones&zone) != 0 {
			out = append(out, handle)
		}
	}
	return out
}

// ErrorSubscribers returns the handles that should receive a HAL error
// for prop: every subscriber of prop if prop != 0 and that set is
// non-empty, else every client monitoring errors globally.
func (m *Manager) ErrorSubscribers(prop int32) []client.Handle {
	if prop != 0 {
		m.mu.Lock()
		set, ok := m.propertyToClients[prop]
		handles := make([]client.Handle, 0, len(set))
		for handle := range set {
			handles = append(handles, handle)
		}
		m.mu.Unlock()
		if ok && len(handles) > 0 {
			return handles
		}
	}

	var out []client.Handle
	for _, rec := range m.registry.Snapshot() {
		if rec.MonitorsErrors() {
			out = append(out, rec.Handle)
		}
	}
	return out
}

// Invalidate clears every tracked property-to-clients entry, aggregate,
// and SET_CALL membership, and empties every registered client's
// subscription map. Used by the mock swap protocol. Clients that become
// inactive as a result are dropped from the registry.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.propertyToClients = make(map[int32]map[client.Handle]struct{})
	m.aggregates = make(map[int32]Aggregate)
	m.setCallProps = make(map[int32]struct{})
	m.mu.Unlock()

	for _, rec := range m.registry.Snapshot() {
		rec.ClearSubscriptions()
		if !rec.IsActive() {
			m.registry.Remove(rec.Handle)
		}
	}
}

// SetCallProperties reports whether prop has at least one SET_CALL subscriber.
func (m *Manager) SetCallProperties(prop int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.setCallProps[prop]
	return ok
}

// Aggregate returns the current aggregate for prop, if any.
func (m *Manager) Aggregate(prop int32) (Aggregate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.aggregates[prop]
	return agg, ok
}

func normalizeRate(cfg value.Config, rate float64) float64 {
	if cfg.ChangeMode.IsSampleRateFixed() {
		return 0
	}
	if rate < cfg.MinSampleRate {
		return cfg.MinSampleRate
	}
	if rate > cfg.MaxSampleRate {
		return cfg.MaxSampleRate
	}
	return rate
}

func normalizeZones(cfg value.Config, zones int32) (int32, error) {
	if !cfg.IsZoned() {
		return 0, nil
	}
	if zones == 0 {
		return 0, nil
	}
	if zones & ^cfg.ZoneFlags != 0 {
		return 0, fmt.Errorf("%w: zones 0x%x not a subset of 0x%x", vnserr.ErrBadValue, zones, cfg.ZoneFlags)
	}
	return zones, nil
}

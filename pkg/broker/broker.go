// Package broker implements the public broker facade (C8): the single
// entry point composing the property registry, access controller,
// internal-property cache, client registry, subscription manager,
// event pipeline, and HAL gateway into the operations a client caller
// invokes. Get, Set and Subscribe are gated by the access controller
// before any mutation; the other operations (Unsubscribe, the error and
// restart monitors, mocking, injection) take no uid and are not
// access-checked. The facade composition itself follows
// pkg/service.DeviceService in the retrieved pack — a struct wiring
// together its collaborators in New, exposing only narrow public
// methods, with no broker state of its own beyond the collaborators and
// the dispatch worker's lifecycle.
package broker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vns-go/vns/pkg/access"
	"github.com/vns-go/vns/pkg/cache"
	"github.com/vns-go/vns/pkg/client"
	"github.com/vns-go/vns/pkg/hal"
	"github.com/vns-go/vns/pkg/pipeline"
	"github.com/vns-go/vns/pkg/property"
	"github.com/vns-go/vns/pkg/subscription"
	"github.com/vns-go/vns/pkg/value"
	"github.com/vns-go/vns/pkg/vnserr"
	"github.com/vns-go/vns/pkg/vnslog"
)

// Config configures a Broker's tunables. Zero values fall back to the
// same defaults pkg/pipeline and pkg/hal use on their own.
type Config struct {
	DispatchInterval time.Duration
	RetryWait        time.Duration
	MaxRetries       int
}

// Broker is the VNS broker facade. Its only mutex guards the dispatch
// worker's cancel function; every operation delegates to exactly the
// collaborator that owns the relevant state.
type Broker struct {
	props      *property.Registry
	acl        *access.Controller
	cache      *cache.Cache
	registry   *client.Registry
	subs       *subscription.Manager
	pipeline   *pipeline.Pipeline
	gateway    *hal.Gateway
	logger     vnslog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Broker wired to real as the real HAL driver, with
// internalConfigs as the compiled-in internal property list and acl as
// the already-initialized access policy. Construction calls real.Init
// via the HAL gateway; a failed real-HAL init leaves the broker
// non-functional but alive rather than aborting construction.
func New(real hal.RealHAL, internalConfigs []value.Config, acl *access.Controller, cfg Config, logger vnslog.Logger) *Broker {
	if logger == nil {
		logger = vnslog.NoopLogger{}
	}

	b := &Broker{
		acl:      acl,
		cache:    cache.New(),
		registry: client.NewRegistry(),
		logger:   logger,
	}

	b.pipeline = pipeline.New(b, cfg.DispatchInterval, logger)
	b.gateway = hal.New(real, hal.Config{Wait: cfg.RetryWait, MaxRetries: cfg.MaxRetries}, b.pipeline, b.onHalError, b.onHalSwap)
	b.props = property.New(b.gateway.ListProperties(), internalConfigs)
	b.subs = subscription.New(b.registry, b.props, b.acl, b.gateway, b.pipeline, logger)

	return b
}

// Run starts the event pipeline's dedicated dispatch worker. It blocks
// until ctx is canceled or Stop is called.
func (b *Broker) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	defer b.wg.Done()
	b.pipeline.Run(ctx)
}

// Stop shuts down the dispatch worker and clears the internal-property
// cache. It does not call Release on the real HAL driver.
func (b *Broker) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	b.pipeline.Stop()
	b.cache.Close()
}

// ListProperties implements C1's list(prop) as seen from the facade.
func (b *Broker) ListProperties(prop int32) []value.Config {
	return b.props.List(prop)
}

// Get reads prop's current value into v. v.Prop must already be set.
func (b *Broker) Get(uid int32, v *value.Value) error {
	if !b.acl.TestAccess(v.Prop, uid, false) {
		return vnserr.ErrPermissionDenied
	}
	if !b.props.IsGettable(v.Prop) {
		return vnserr.NotFound(v.Prop)
	}
	if b.props.IsInternal(v.Prop) {
		cached, ok := b.cache.Read(v.Prop)
		if !ok {
			return vnserr.NotFound(v.Prop)
		}
		*v = cached
		return nil
	}
	return b.gateway.Get(v)
}

// Set writes v. On success it independently fans the write out to every
// SET_CALL subscriber, whether the write went to the cache or the HAL.
func (b *Broker) Set(uid int32, v value.Value) error {
	if !b.acl.TestAccess(v.Prop, uid, true) {
		return vnserr.ErrPermissionDenied
	}
	if !b.props.IsSettable(v.Prop, v.ValueType) {
		return fmt.Errorf("%w: property 0x%x is not settable as this value type", vnserr.ErrBadValue, v.Prop)
	}

	var err error
	if b.props.IsInternal(v.Prop) {
		b.cache.Write(v)
		b.pipeline.HandleEvent(v)
	} else {
		err = b.gateway.Set(&v)
	}

	b.logger.Log(vnslog.Event{Category: vnslog.CategoryPropertySet, Property: v.Prop, Err: err})

	if err == nil {
		b.setFanOut(v)
	}
	return err
}

func (b *Broker) setFanOut(v value.Value) {
	for _, handle := range b.subs.SetCallSubscribers(v.Prop, v.Zone) {
		rec, ok := b.registry.Get(handle)
		if !ok || rec.Listener == nil {
			continue
		}
		rec.Listener.OnPropertySet(v.Clone())
	}
}

// Subscribe installs or replaces handle's subscription to prop. flags
// of 0 defaults to FlagHalEvent, matching the facade's UNDEFINED ->
// HAL_EVENT default.
func (b *Broker) Subscribe(handle client.Handle, pid, uid int32, listener client.Listener, prop int32, rate float64, zones int32, flags client.Flags) error {
	if !b.acl.TestAccess(prop, uid, false) {
		return vnserr.ErrPermissionDenied
	}
	if flags == 0 {
		flags = client.FlagHalEvent
	}
	return b.subs.Subscribe(handle, pid, uid, listener, prop, rate, zones, flags)
}

// Unsubscribe removes handle's subscription to prop.
func (b *Broker) Unsubscribe(handle client.Handle, prop int32) error {
	return b.subs.Unsubscribe(handle, prop)
}

// InjectEvent feeds v into the pipeline directly, bypassing the
// mocking drop filter that otherwise applies to real-HAL callbacks.
func (b *Broker) InjectEvent(v value.Value) {
	b.pipeline.HandleEvent(v)
}

// InjectHalError feeds a HAL error into the pipeline's error queue,
// also bypassing the mocking drop filter.
func (b *Broker) InjectHalError(code, prop, operation int32) {
	b.pipeline.InjectError(vnserr.HalError{Code: code, Property: prop, Operation: operation})
}

// StartErrorListening registers handle as monitoring HAL errors,
// creating its client record if this is its first interaction.
func (b *Broker) StartErrorListening(handle client.Handle, pid, uid int32, listener client.Listener) {
	rec := b.registry.GetOrCreate(handle, pid, uid, listener, b.subs.HandleClientDeath)
	rec.SetMonitorError(true)
}

// StopErrorListening clears handle's error-monitoring flag, dropping
// its record if it becomes inactive.
func (b *Broker) StopErrorListening(handle client.Handle) {
	rec, ok := b.registry.Get(handle)
	if !ok {
		return
	}
	if stillActive := rec.SetMonitorError(false); !stillActive {
		b.registry.Remove(handle)
	}
}

// StartHalRestartMonitoring registers handle as monitoring HAL restarts
// (mock swap notifications), creating its client record if absent.
func (b *Broker) StartHalRestartMonitoring(handle client.Handle, pid, uid int32, listener client.Listener) {
	rec := b.registry.GetOrCreate(handle, pid, uid, listener, b.subs.HandleClientDeath)
	rec.SetMonitorRestart(true)
}

// StopHalRestartMonitoring clears handle's restart-monitoring flag,
// dropping its record if it becomes inactive.
func (b *Broker) StopHalRestartMonitoring(handle client.Handle) {
	rec, ok := b.registry.Get(handle)
	if !ok {
		return
	}
	if stillActive := rec.SetMonitorRestart(false); !stillActive {
		b.registry.Remove(handle)
	}
}

// NotifyClientDeath reports that handle's owning connection died. The
// broker unsubscribes it from everything and drops its record.
func (b *Broker) NotifyClientDeath(handle client.Handle) {
	b.registry.NotifyDeath(handle)
}

// StartMocking installs mock as the active HAL.
func (b *Broker) StartMocking(mock hal.MockHAL) {
	b.gateway.StartMocking(mock)
}

// StopMocking removes mock as the active HAL if it is the one
// currently installed.
func (b *Broker) StopMocking(mock hal.MockHAL) {
	b.gateway.StopMocking(mock)
}

// NotifyMockDeath reports that a mock HAL's owning process died.
func (b *Broker) NotifyMockDeath(handle any) {
	b.gateway.NotifyMockDeath(handle)
}

// onHalError is the HAL gateway's error callback. It enqueues the error
// onto the pipeline's error queue so delivery is serialized through the
// single dispatch worker rather than running on the HAL's own thread.
func (b *Broker) onHalError(code, prop, operation int32) {
	b.pipeline.InjectError(vnserr.HalError{Code: code, Property: prop, Operation: operation})
}

// onHalSwap runs synchronously after StartMocking/StopMocking completes
// the swap. It discards buffered events, invalidates every outstanding
// subscription, swaps the active property list, and notifies restart
// monitors outside any lock.
func (b *Broker) onHalSwap(mocking bool) {
	b.pipeline.Discard()
	b.subs.Invalidate()

	if mocking {
		b.props.SetMockList(b.gateway.ListProperties())
	} else {
		b.props.ClearMockList()
	}

	for _, rec := range b.registry.Snapshot() {
		if rec.MonitorsHalRestart() && rec.Listener != nil {
			rec.Listener.OnHalRestart(mocking)
		}
	}
}

// DispatchEvents implements pipeline.FanOut. It fans batch out to every
// property's HAL_EVENT subscribers, batching per client, then flushes
// each touched client exactly once.
func (b *Broker) DispatchEvents(batch []value.Value) {
	touched := make(map[client.Handle]*client.Record)
	for _, v := range batch {
		for _, handle := range b.subs.Subscribers(v.Prop) {
			rec, ok := b.registry.Get(handle)
			if !ok {
				continue
			}
			rec.EnqueueEvent(v.Clone())
			touched[handle] = rec
		}
	}
	for _, rec := range touched {
		if rec.Listener == nil {
			continue
		}
		if events := rec.FlushEvents(); events != nil {
			rec.Listener.OnEvents(events)
		}
	}
}

// DispatchError implements pipeline.FanOut.
func (b *Broker) DispatchError(e vnserr.HalError) {
	for _, handle := range b.subs.ErrorSubscribers(e.Property) {
		rec, ok := b.registry.Get(handle)
		if !ok || rec.Listener == nil {
			continue
		}
		rec.Listener.OnHalError(e.Code, e.Property, e.Operation)
	}
}

// Dump writes a human-readable diagnostic report to w: mocking state,
// per-property subscribers and aggregate, dispatch stats, and
// dropped-while-mocking counters. No consumer depends on the exact format.
func (b *Broker) Dump(w io.Writer) {
	fmt.Fprintf(w, "mocking: %v\n", b.gateway.Mocking())

	dropped, lastDropNs := b.gateway.DroppedWhileMocking()
	fmt.Fprintf(w, "dropped_while_mocking: count=%d last_timestamp_ns=%d\n", dropped, lastDropNs)

	for _, prop := range b.subs.SubscribedProperties() {
		agg, _ := b.subs.Aggregate(prop)
		fmt.Fprintf(w, "property 0x%x: rate=%.2f zones=0x%x flags=%d\n", prop, agg.Rate, agg.Zones, agg.Flags)

		for _, handle := range b.subs.AllSubscribers(prop) {
			rec, ok := b.registry.Get(handle)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  subscriber pid=%d uid=%d\n", rec.PID, rec.UID)
		}

		if info, ok := b.pipeline.EventInfo(prop); ok {
			fmt.Fprintf(w, "  events: count=%d last_timestamp=%d\n", info.Count, info.LastTimestamp)
		}
	}
}

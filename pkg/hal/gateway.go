package hal

import (
	"sync"
	"time"

	"github.com/vns-go/vns/pkg/value"
	"github.com/vns-go/vns/pkg/vnserr"
)

// EventSink is where Gateway forwards values pushed by the active HAL
// or mock. It matches subscription.EventSink structurally so the
// broker can wire the pipeline in directly without either package
// importing the other.
type EventSink interface {
	HandleEvent(v value.Value)
}

// Config tunes the gateway's get/set retry behavior.
type Config struct {
	// Wait is the delay between retries of a NotReady get/set.
	Wait time.Duration
	// MaxRetries bounds how many times a NotReady get/set is retried
	// before the error is surfaced to the caller.
	MaxRetries int
}

// Gateway unifies the real HAL driver and an optional mock HAL behind
// one get/set/subscribe/unsubscribe surface, per C7. Exactly one of
// real/mock is ever "active"; mocking swaps which one Get/Set/Subscribe/
// Unsubscribe route to.
type Gateway struct {
	mu sync.RWMutex

	real RealHAL
	mock MockHAL

	mocking bool
	watch   *mockWatch

	retryCfg Config

	sink      EventSink
	onError   func(code, prop, operation int32)
	onSwap    func(mocking bool)

	droppedWhileMocking     int64
	lastDropWhileMockingNs  int64
}

// New creates a Gateway wrapping real, forwarding pushed values to sink
// and HAL errors to onError. onSwap is invoked synchronously from
// StartMocking/StopMocking after the swap completes, and is where the
// broker performs subscription invalidation and client notification.
func New(real RealHAL, cfg Config, sink EventSink, onError func(code, prop, operation int32), onSwap func(mocking bool)) *Gateway {
	g := &Gateway{
		real:     real,
		retryCfg: cfg,
		sink:     sink,
		onError:  onError,
		onSwap:   onSwap,
	}
	if real != nil {
		real.Init(g.handleRealEvent, g.handleRealError)
	}
	return g
}

func (g *Gateway) handleRealEvent(v value.Value) {
	g.mu.RLock()
	mocking := g.mocking
	g.mu.RUnlock()

	if mocking {
		g.mu.Lock()
		g.droppedWhileMocking++
		g.lastDropWhileMockingNs = v.Timestamp
		g.mu.Unlock()
		return
	}
	g.sink.HandleEvent(v)
}

func (g *Gateway) handleRealError(code, prop, operation int32) {
	g.mu.RLock()
	mocking := g.mocking
	g.mu.RUnlock()

	if mocking {
		return
	}
	if g.onError != nil {
		g.onError(code, prop, operation)
	}
}

// Get fetches prop's current value, retrying on NotReady up to the
// configured retry budget.
func (g *Gateway) Get(v *value.Value) error {
	g.mu.RLock()
	mocking, mock, real := g.mocking, g.mock, g.real
	g.mu.RUnlock()

	if mocking {
		if err := mock.OnPropertyGet(v); err != nil {
			return vnserr.ErrMockRejected
		}
		return nil
	}

	r := newRetrier(retryConfig{Wait: g.retryCfg.Wait, MaxRetries: g.retryCfg.MaxRetries})
	for {
		err := real.Get(v)
		if err == nil || err != vnserr.ErrNotReady {
			return err
		}
		delay, ok := r.next()
		if !ok {
			return vnserr.ErrNotReady
		}
		time.Sleep(delay)
	}
}

// Set writes v, retrying on NotReady up to the configured retry budget.
func (g *Gateway) Set(v *value.Value) error {
	g.mu.RLock()
	mocking, mock, real := g.mocking, g.mock, g.real
	g.mu.RUnlock()

	if mocking {
		if err := mock.OnPropertySet(*v); err != nil {
			return vnserr.ErrMockRejected
		}
		return nil
	}

	r := newRetrier(retryConfig{Wait: g.retryCfg.Wait, MaxRetries: g.retryCfg.MaxRetries})
	for {
		err := real.Set(v)
		if err == nil || err != vnserr.ErrNotReady {
			return err
		}
		delay, ok := r.next()
		if !ok {
			return vnserr.ErrNotReady
		}
		time.Sleep(delay)
	}
}

// Subscribe pushes an aggregate subscription down to the active HAL.
func (g *Gateway) Subscribe(prop int32, rate float64, zones int32) error {
	g.mu.RLock()
	mocking, mock, real := g.mocking, g.mock, g.real
	g.mu.RUnlock()

	if mocking {
		if err := mock.OnPropertySubscribe(prop, rate, zones); err != nil {
			return vnserr.ErrMockRejected
		}
		return nil
	}
	return real.Subscribe(prop, rate, zones)
}

// Unsubscribe removes prop's subscription from the active HAL.
func (g *Gateway) Unsubscribe(prop int32) error {
	g.mu.RLock()
	mocking, mock, real := g.mocking, g.mock, g.real
	g.mu.RUnlock()

	if mocking {
		if err := mock.OnPropertyUnsubscribe(prop); err != nil {
			return vnserr.ErrMockRejected
		}
		return nil
	}
	return real.Unsubscribe(prop)
}

// ListProperties returns the active HAL's property list: the mock's
// while mocking, otherwise the real driver's.
func (g *Gateway) ListProperties() []value.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.mocking {
		return g.mock.OnListProperties()
	}
	return g.real.ListProperties()
}

// Mocking reports whether a mock HAL is currently active.
func (g *Gateway) Mocking() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mocking
}

// DroppedWhileMocking reports how many real-HAL events were dropped
// because a mock was active, and the timestamp of the last one.
func (g *Gateway) DroppedWhileMocking() (count int64, lastTimestampNs int64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.droppedWhileMocking, g.lastDropWhileMockingNs
}

// StartMocking installs mock as the active HAL. If a mock is already
// active, its death watch is unlinked first (tolerating duplicate
// starts). onSwap(true) runs after the swap completes.
func (g *Gateway) StartMocking(mock MockHAL) {
	g.mu.Lock()
	if g.watch == nil {
		g.watch = newMockWatch()
	}
	if g.mock != nil {
		g.watch.unwatch(g.mock.Handle())
	}
	g.watch.watch(mock.Handle(), func() { g.StopMocking(mock) })
	g.mock = mock
	g.mocking = true
	g.mu.Unlock()

	if g.onSwap != nil {
		g.onSwap(true)
	}
}

// StopMocking removes mock as the active HAL, restoring the real
// driver. It is a no-op if mock is not the currently registered mock.
// onSwap(false) runs after the swap completes.
func (g *Gateway) StopMocking(mock MockHAL) {
	g.mu.Lock()
	if !g.mocking || g.mock != mock {
		g.mu.Unlock()
		return
	}
	g.watch.unwatch(mock.Handle())
	g.mock = nil
	g.mocking = false
	g.mu.Unlock()

	if g.onSwap != nil {
		g.onSwap(false)
	}
}

// NotifyMockDeath reports that handle's owning process has died. If
// handle matches the currently active mock, this triggers the same
// path as an explicit StopMocking.
func (g *Gateway) NotifyMockDeath(handle any) {
	g.mu.RLock()
	watch := g.watch
	g.mu.RUnlock()
	if watch == nil {
		return
	}
	watch.notify(handle)
}

// Package pipeline implements the double-buffered event queue (C6 of
// the broker): HAL and injected values are coalesced under a narrow
// lock and handed to a single dedicated worker for fan-out, so no
// producer ever blocks on delivery. The background-worker shape
// (context.Context + sync.WaitGroup, stopped by cancelling the context,
// started once behind an atomic.Bool) follows
// pkg/service.NotificationDispatcher.Start/Stop/processLoop in the
// retrieved pack; the two-list free-index swap itself follows a
// classic double-buffered event queue: a producer always appends to
// the "free" list while the dispatch worker drains whichever list last
// held data, then the two swap roles.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vns-go/vns/pkg/value"
	"github.com/vns-go/vns/pkg/vnserr"
	"github.com/vns-go/vns/pkg/vnslog"
)

// DefaultDispatchInterval is the minimum spacing between dispatch
// wakeups, matching DISPATCH_INTERVAL_MS in the source.
const DefaultDispatchInterval = 10 * time.Millisecond

// FanOut is how the pipeline hands a dispatch-ready batch or a single
// HAL error off to the rest of the broker. Implementations must not
// call back into the pipeline synchronously.
type FanOut interface {
	DispatchEvents(batch []value.Value)
	DispatchError(e vnserr.HalError)
}

// Pipeline is the double-buffered event queue described in C6.
type Pipeline struct {
	mu               sync.Mutex
	lists            [2][]value.Value
	freeListIndex    int
	lastDispatchTime time.Time
	errors           []vnserr.HalError
	eventInfos       map[int32]eventInfo

	interval time.Duration
	wake     chan struct{}
	fanOut   FanOut
	logger   vnslog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type eventInfo struct {
	count         int64
	lastTimestamp int64
}

// EventInfo is a read-only snapshot of the events accepted for a
// property (counted in HandleEvent, before dispatch), used by Dump.
type EventInfo struct {
	Count         int64
	LastTimestamp int64
}

// New creates a Pipeline that hands dispatch-ready batches to fanOut.
// interval <= 0 uses DefaultDispatchInterval.
func New(fanOut FanOut, interval time.Duration, logger vnslog.Logger) *Pipeline {
	if interval <= 0 {
		interval = DefaultDispatchInterval
	}
	if logger == nil {
		logger = vnslog.NoopLogger{}
	}
	return &Pipeline{
		eventInfos: make(map[int32]eventInfo),
		interval:   interval,
		wake:       make(chan struct{}, 1),
		fanOut:     fanOut,
		logger:     logger,
	}
}

// Run starts the dedicated dispatch worker. It blocks until ctx is
// canceled or Stop is called; callers typically run it in its own
// goroutine.
func (p *Pipeline) Run(ctx context.Context) {
	if p.running.Swap(true) {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			p.running.Store(false)
			return
		case <-p.wake:
			p.dispatchOnce()
		}
	}
}

// Stop cancels the worker loop and waits for it to exit.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// HandleEvent is the producer-side entry point, called from a HAL
// callback (possibly on a driver-owned thread) or from injection. It
// takes ownership of v, appends it to the active list, and schedules a
// dispatch wakeup without ever dispatching inline.
func (p *Pipeline) HandleEvent(v value.Value) {
	now := time.Now()

	p.mu.Lock()
	p.lists[p.freeListIndex] = append(p.lists[p.freeListIndex], v)
	info := p.eventInfos[v.Prop]
	info.count++
	info.lastTimestamp = v.Timestamp
	p.eventInfos[v.Prop] = info

	var delay time.Duration
	if delta := now.Sub(p.lastDispatchTime); delta > p.interval {
		delay = 0
	} else {
		delay = p.interval - delta
	}
	p.mu.Unlock()

	p.scheduleWake(delay)
}

// InjectError enqueues a HAL error for delivery by the dispatch worker.
// Errors skip coalescing entirely and wake the worker immediately.
func (p *Pipeline) InjectError(e vnserr.HalError) {
	p.mu.Lock()
	p.errors = append(p.errors, e)
	p.mu.Unlock()
	p.scheduleWake(0)
}

// Discard drops every buffered, not-yet-dispatched event without
// running fan-out. Used by the mock swap protocol, which invalidates
// all outstanding state rather than delivering it to stale subscribers.
func (p *Pipeline) Discard() {
	p.mu.Lock()
	p.lists[0] = nil
	p.lists[1] = nil
	p.eventInfos = make(map[int32]eventInfo)
	p.mu.Unlock()
}

func (p *Pipeline) scheduleWake(delay time.Duration) {
	if delay <= 0 {
		p.signalWake()
		return
	}
	time.AfterFunc(delay, p.signalWake)
}

func (p *Pipeline) signalWake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// dispatchOnce performs one consume step: freeze whichever list holds
// data, release the lock, and hand the frozen batch to fanOut.
func (p *Pipeline) dispatchOnce() {
	p.mu.Lock()
	p.lastDispatchTime = time.Now()

	nonFreeIdx := p.freeListIndex ^ 1
	var batch []value.Value
	if len(p.lists[nonFreeIdx]) > 0 {
		p.lists[nonFreeIdx] = append(p.lists[nonFreeIdx], p.lists[p.freeListIndex]...)
		p.lists[p.freeListIndex] = nil
		batch = p.lists[nonFreeIdx]
		p.lists[nonFreeIdx] = nil
	} else if len(p.lists[p.freeListIndex]) > 0 {
		frozenIdx := p.freeListIndex
		p.freeListIndex = nonFreeIdx
		batch = p.lists[frozenIdx]
		p.lists[frozenIdx] = nil
	}

	var errs []vnserr.HalError
	if len(p.errors) > 0 {
		errs = p.errors
		p.errors = nil
	}
	p.mu.Unlock()

	if len(batch) > 0 {
		p.fanOut.DispatchEvents(batch)
	}
	for _, e := range errs {
		p.fanOut.DispatchError(e)
		p.logger.Log(vnslog.Event{Category: vnslog.CategoryHalError, Property: e.Property})
	}
}

// EventInfo returns the accepted-event count and last timestamp
// recorded for prop since the last Discard.
func (p *Pipeline) EventInfo(prop int32) (EventInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.eventInfos[prop]
	if !ok {
		return EventInfo{}, false
	}
	return EventInfo{Count: info.count, LastTimestamp: info.lastTimestamp}, true
}

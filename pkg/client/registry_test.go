package client

import "testing"

func TestGetOrCreateReturnsSameRecordOnSecondCall(t *testing.T) {
	r := NewRegistry()
	var deaths int
	rec1 := r.GetOrCreate("handle-1", 1, 100, nil, func(Handle) { deaths++ })
	rec2 := r.GetOrCreate("handle-1", 1, 100, nil, func(Handle) { deaths++ })

	if rec1 != rec2 {
		t.Fatal("expected the same record for repeated GetOrCreate calls")
	}
}

func TestNotifyDeathInvokesCallbackOnce(t *testing.T) {
	r := NewRegistry()
	var deaths int
	r.GetOrCreate("handle-1", 1, 100, nil, func(Handle) { deaths++ })

	if ok := r.NotifyDeath("handle-1"); !ok {
		t.Fatal("expected a callback to be registered")
	}
	if ok := r.NotifyDeath("handle-1"); ok {
		t.Fatal("expected no callback on the second notify")
	}
	if deaths != 1 {
		t.Fatalf("deaths = %d, want 1", deaths)
	}
}

func TestRemoveDropsRecordAndWatch(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("handle-1", 1, 100, nil, func(Handle) {})
	r.Remove("handle-1")

	if r.Active("handle-1") {
		t.Fatal("expected record to be gone after Remove")
	}
	if ok := r.NotifyDeath("handle-1"); ok {
		t.Fatal("expected no death callback after Remove")
	}
}

func TestRecordActivityTracksSubscriptionsAndMonitors(t *testing.T) {
	rec := newRecord("handle-1", 1, 100, nil)
	if rec.IsActive() {
		t.Fatal("fresh record should not be active")
	}

	rec.AddSubscription(0x100, SubscriptionInfo{SampleRate: 10, Flags: FlagHalEvent})
	if !rec.IsActive() {
		t.Fatal("record with a subscription should be active")
	}

	if stillActive := rec.RemoveSubscription(0x100); stillActive {
		t.Fatal("record with no subscriptions or monitors should not be active")
	}

	if stillActive := rec.SetMonitorError(true); !stillActive {
		t.Fatal("record monitoring errors should be active")
	}
}

func TestFlushEventsReturnsNilWhenEmpty(t *testing.T) {
	rec := newRecord("handle-1", 1, 100, nil)
	if got := rec.FlushEvents(); got != nil {
		t.Fatalf("FlushEvents() = %v, want nil", got)
	}
}

package vnslog

import (
	"errors"
	"testing"
	"time"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	event := Event{
		Timestamp: time.Now(),
		Category:  CategoryPropertyGet,
		Property:  0x100,
	}
	logger.Log(event)

	event.Err = errors.New("boom")
	logger.Log(event)
}

func TestLoggerInterfaceSatisfaction(t *testing.T) {
	var _ Logger = NoopLogger{}
	var _ Logger = &NoopLogger{}
}

func TestNoopLoggerIsZeroValue(t *testing.T) {
	var logger NoopLogger
	logger.Log(Event{})
}

func TestMultiLoggerFansOut(t *testing.T) {
	var calls int
	rec := recorderLogger(func(Event) { calls++ })

	m := NewMultiLogger(rec, rec, NoopLogger{})
	m.Log(Event{Category: CategorySubscribe})

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

type recorderLogger func(Event)

func (f recorderLogger) Log(e Event) { f(e) }

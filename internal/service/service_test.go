package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_SessionFilter(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe("a")
	b := bus.Subscribe("b")
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	bus.Publish(Event{Session: "a", Kind: KindSignals, Payload: map[string]any{"loading": true}})
	bus.Publish(Event{Kind: KindEvent, Target: "ponds-url"})

	require.Len(t, a, 2)
	require.Len(t, b, 1)
	ev := <-a
	assert.Equal(t, KindSignals, ev.Kind)
	ev = <-b
	assert.Equal(t, "ponds-url", ev.Target)
}

func TestEventBus_SlowSubscriberSkipped(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("a")
	defer bus.Unsubscribe(ch)

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Event{Session: "a"})
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.True(t, bus.Lagged(ch))
	assert.False(t, bus.Lagged(ch), "the flag resets once read")
}

func TestEventBus_NotLaggedWhenKeepingUp(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("a")
	defer bus.Unsubscribe(ch)

	bus.Publish(Event{Session: "a"})
	<-ch
	assert.False(t, bus.Lagged(ch))
}

func TestSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	created := 0
	var released []string

	s := NewSessions(time.Hour,
		func(id string) string { created++; return "viewer-" + id },
		func(v string) { released = append(released, v) })
	s.Now = func() time.Time { return now }

	assert.Equal(t, "viewer-1", s.GetOrCreate("1"))
	assert.Equal(t, "viewer-1", s.GetOrCreate("1"))
	s.GetOrCreate("2")
	assert.Equal(t, 2, created)

	_, ok := s.Get("3")
	assert.False(t, ok)

	now = now.Add(45 * time.Minute)
	_, ok = s.Get("1") // keeps 1 alive
	assert.True(t, ok)

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, []string{"viewer-2"}, released)
	assert.Equal(t, 1, s.Len())

	s.Close()
	assert.Equal(t, 0, s.Len())
	assert.Contains(t, released, "viewer-1")
}

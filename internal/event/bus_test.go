package event

import (
	"context"
	"testing"
	"time"

	"modwatch/internal/metrics"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(42)

	select {
	case got := <-ch:
		if got != 42 {
			t.Fatalf("expected 42, got %d", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after cancel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{})
	ch, _ := bus.Subscribe()

	bus.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after bus close")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBusFilteredSubscription(t *testing.T) {
	bus := NewBus[string](context.Background(), BusOptions{})
	t.Cleanup(bus.Close)

	ch, cancel := bus.SubscribeFiltered(func(value string) bool {
		return value == "keep"
	})
	defer cancel()

	bus.Publish("skip")
	bus.Publish("keep")

	select {
	case got := <-ch:
		if got != "keep" {
			t.Fatalf("expected keep, got %q", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for filtered event")
	}
}

func TestBusDropOnFullSubscriber(t *testing.T) {
	registry := &metrics.Registry{}
	bus := NewBus[string](context.Background(), BusOptions{
		Name:                 "drop",
		SubscriberBufferSize: 1,
		Registry:             registry,
	})
	t.Cleanup(bus.Close)

	ch, _ := bus.Subscribe()

	bus.Publish("first")
	bus.Publish("second")

	select {
	case got := <-ch:
		if got != "first" {
			t.Fatalf("expected first, got %q", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for buffered event")
	}

	select {
	case got := <-ch:
		t.Fatalf("expected drop, got %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusMaxSubscribers(t *testing.T) {
	bus := NewBus[int](context.Background(), BusOptions{MaxSubscribers: 1})
	t.Cleanup(bus.Close)

	_, cancel := bus.Subscribe()
	defer cancel()

	ch, _ := bus.Subscribe()
	if _, ok := <-ch; ok {
		t.Fatal("expected over-limit subscription to be closed immediately")
	}
}

func TestBusContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus[int](ctx, BusOptions{})

	ch, _ := bus.Subscribe()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after context cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for context-driven close")
	}
}

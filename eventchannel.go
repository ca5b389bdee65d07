package muxscope

import (
	"context"
	"sync/atomic"
)

// OverflowPolicy decides what Publish does when the channel is full.
type OverflowPolicy int

const (
	// DropNewest discards the event being published, the reader never waits
	DropNewest OverflowPolicy = iota
	// Block waits for the consumer to make room or for the context to end
	Block
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropNewest:
		return "drop"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

const DefaultQueueSize = 256

type ChannelStats struct {
	Published uint64
	Dropped   uint64
}

// EventChannel is a bounded many-producer / single-consumer queue of events.
// Events from one producer are delivered in the order they were published.
type EventChannel struct {
	ch     chan Event
	policy OverflowPolicy

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewEventChannel(size int, policy OverflowPolicy) *EventChannel {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &EventChannel{
		ch:     make(chan Event, size),
		policy: policy,
	}
}

func (c *EventChannel) Policy() OverflowPolicy {
	return c.policy
}

// Publish enqueues ev according to the overflow policy. With DropNewest a full
// channel returns ErrEventChannelFull, with Block it returns ctx.Err() if the
// context ends before there is room.
func (c *EventChannel) Publish(ctx context.Context, ev Event) error {
	if c.policy == Block {
		return c.PublishWait(ctx, ev)
	}
	select {
	case c.ch <- ev:
		c.published.Add(1)
		return nil
	default:
		c.dropped.Add(1)
		return ErrEventChannelFull
	}
}

// PublishWait enqueues ev regardless of policy, waiting for room.
func (c *EventChannel) PublishWait(ctx context.Context, ev Event) error {
	select {
	case c.ch <- ev:
		c.published.Add(1)
		return nil
	default:
	}
	select {
	case c.ch <- ev:
		c.published.Add(1)
		return nil
	case <-ctx.Done():
		c.dropped.Add(1)
		return ctx.Err()
	}
}

// Drain returns every event currently queued without waiting for more.
func (c *EventChannel) Drain() []Event {
	return c.DrainInto(nil)
}

// DrainInto is Drain appending to buf, so a consumer can reuse its slice.
func (c *EventChannel) DrainInto(buf []Event) []Event {
	for {
		select {
		case ev := <-c.ch:
			buf = append(buf, ev)
		default:
			return buf
		}
	}
}

// C returns the receive side for consumers that prefer to select on it.
func (c *EventChannel) C() <-chan Event {
	return c.ch
}

func (c *EventChannel) Len() int {
	return len(c.ch)
}

func (c *EventChannel) Cap() int {
	return cap(c.ch)
}

func (c *EventChannel) Stats() ChannelStats {
	return ChannelStats{
		Published: c.published.Load(),
		Dropped:   c.dropped.Load(),
	}
}

// Package bus is the in-process publish/subscribe fabric between the
// dispatch-loop application layer and anything observing the node (the
// hosted demo console, tests). Topics are exact segment paths; retained
// messages give late subscribers the last value, which is how the
// configuration and latest-reading topics behave.
package bus

import (
	"strings"
	"sync"
)

// Topic is a path of plain segments, e.g. {"telemetry", "light"}.
type Topic []string

func (t Topic) key() string { return strings.Join(t, "/") }

// T builds a topic from its segments.
func T(segs ...string) Topic { return Topic(segs) }

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// Subscription receives messages for one exact topic.
type Subscription struct {
	topic Topic
	ch    chan *Message
	bus   *Bus
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.bus.unsubscribe(s) }

// Bus routes messages to exact-topic subscribers and stores retained
// values per topic.
type Bus struct {
	mu       sync.Mutex
	subs     map[string][]*Subscription
	retained map[string]*Message
	qLen     int
}

// NewBus creates a bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		subs:     map[string][]*Subscription{},
		retained: map[string]*Message{},
		qLen:     queueLen,
	}
}

// Subscribe registers for one exact topic. A retained message on that
// topic is delivered immediately.
func (b *Bus) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan *Message, b.qLen), bus: b}

	b.mu.Lock()
	k := topic.key()
	b.subs[k] = append(b.subs[k], sub)
	if m := b.retained[k]; m != nil {
		sub.ch <- m
	}
	b.mu.Unlock()
	return sub
}

// Publish delivers msg to all subscribers of its topic. A slow subscriber
// loses its oldest queued message rather than blocking the publisher. A
// retained message with a nil payload clears the stored value.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	k := msg.Topic.key()
	for _, sub := range b.subs[k] {
		select {
		case sub.ch <- msg:
		default:
			// drop oldest if queue full
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- msg
		}
	}
	if msg.Retained {
		if msg.Payload == nil {
			delete(b.retained, k)
		} else {
			b.retained[k] = msg
		}
	}
	b.mu.Unlock()
}

// Retained returns the stored message for topic, or nil.
func (b *Bus) Retained(topic Topic) *Message {
	b.mu.Lock()
	m := b.retained[topic.key()]
	b.mu.Unlock()
	return m
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	k := sub.topic.key()
	list := b.subs[k]
	for i, s := range list {
		if s == sub {
			b.subs[k] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[k]) == 0 {
		delete(b.subs, k)
	}
	b.mu.Unlock()
	close(sub.ch)
}

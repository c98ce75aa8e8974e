package local

import (
	"context"
	"sync"
)

// LocalMessage is one in-process pub/sub delivery.
type LocalMessage struct {
	Channel string
	Payload string
}

// LocalPubSub fans messages out to in-process subscribers. It backs the
// detection stream when no Redis is configured, so a single-node deploy
// still gets live reader events.
type LocalPubSub struct {
	mu      sync.RWMutex
	subs    map[string]map[chan *LocalMessage]struct{}
	bufSize int
}

// NewPubSub creates a LocalPubSub with the given per-subscriber buffer.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		subs:    make(map[string]map[chan *LocalMessage]struct{}),
		bufSize: bufSize,
	}
}

// Publish delivers the message to every subscriber of the channel. A
// subscriber whose buffer is full misses the message rather than blocking
// the publisher.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for ch := range ps.subs[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers one buffered channel for all the named channels and
// returns it with a cancel function that unregisters and closes it.
func (ps *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	ch := make(chan *LocalMessage, ps.bufSize)

	ps.mu.Lock()
	for _, name := range channels {
		if ps.subs[name] == nil {
			ps.subs[name] = make(map[chan *LocalMessage]struct{})
		}
		ps.subs[name][ch] = struct{}{}
	}
	ps.mu.Unlock()

	cancel := func() {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		for _, name := range channels {
			delete(ps.subs[name], ch)
		}
		close(ch)
	}

	return ch, cancel, nil
}

package controller

import (
	"sync"
)

// Broadcaster fans values out to buffered subscriber channels.
// A subscriber whose buffer is full is dropped and its channel closed.
type Broadcaster[T any] struct {
	mu        *sync.RWMutex
	listeners map[chan T]struct{}
	closed    bool
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{
		mu:        &sync.RWMutex{},
		listeners: make(map[chan T]struct{}),
	}
}

// Subscribe returns a channel receiving every value published after the call.
// On a closed broadcaster the channel is already closed.
func (b *Broadcaster[T]) Subscribe(buf int) <-chan T {
	ch := make(chan T, buf)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners[ch] = struct{}{}
	return ch
}

func (b *Broadcaster[T]) Unsubscribe(ch <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.listeners {
		if (<-chan T)(c) == ch {
			delete(b.listeners, c)
			close(c)
			break
		}
	}
}

// Publish sends v to every subscriber without blocking and returns how many were dropped
func (b *Broadcaster[T]) Publish(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	toRemove := make([]chan T, 0)
	for ch := range b.listeners {
		select {
		case ch <- v:
		default:
			toRemove = append(toRemove, ch)
		}
	}

	if len(toRemove) > 0 {
		go b.remove(toRemove)
	}
	return len(toRemove)
}

func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.listeners {
		close(ch)
	}
	b.listeners = nil
	b.closed = true
}

func (b *Broadcaster[T]) remove(chs []chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range chs {
		// may have been unsubscribed or closed in the meantime
		if _, ok := b.listeners[ch]; !ok {
			continue
		}
		close(ch)
		delete(b.listeners, ch)
	}
}

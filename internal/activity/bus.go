// Package activity turns operator interaction into credential activity and
// ends sessions that stay idle past the inactivity ceiling.
package activity

import (
	"context"
	"sync"
)

// Signal is a coarse interaction reported by the operator's browser.
type Signal string

const (
	PointerDown Signal = "pointer_down"
	PointerMove Signal = "pointer_move"
	KeyPress    Signal = "key_press"
	Scroll      Signal = "scroll"
	TouchStart  Signal = "touch_start"
	Click       Signal = "click"
)

// Signals lists every recognised signal.
var Signals = []Signal{PointerDown, PointerMove, KeyPress, Scroll, TouchStart, Click}

// ParseSignal validates s.
func ParseSignal(s string) (Signal, bool) {
	for _, sig := range Signals {
		if string(sig) == s {
			return sig, true
		}
	}
	return "", false
}

// Listener receives dispatched signals.
type Listener func(ctx context.Context, s Signal)

// Bus fans signals out to the listeners registered at dispatch time.
type Bus struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	next      uint64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[uint64]Listener)}
}

// Listen registers l and returns a function that removes it. Removing twice
// is harmless.
func (b *Bus) Listen(l Listener) (remove func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = l
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Dispatch delivers s to every listener synchronously. With no listener
// registered it does nothing.
func (b *Bus) Dispatch(ctx context.Context, s Signal) {
	b.mu.RLock()
	ls := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.RUnlock()

	for _, l := range ls {
		l(ctx, s)
	}
}

// Listeners returns how many listeners are registered.
func (b *Bus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

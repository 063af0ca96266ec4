package primitives

import (
	"sync"
	"sync/atomic"
)

// Observable is a single mutable value that notifies registered listeners
// synchronously whenever the value changes.
//
// Listeners receive no arguments; they read the current value through Get so
// they never act on a stale snapshot. Listeners run on the goroutine that
// called Set, after the internal lock has been released.
//
// A listener must not assign the Observable it is reacting to. Doing so panics
// with ErrReentrantSet instead of recursing.
type Observable[T comparable] struct {
	mu        sync.RWMutex
	value     T
	present   bool
	listeners []func()
	notifying atomic.Bool
}

// NewObservable creates an Observable holding no value.
func NewObservable[T comparable]() *Observable[T] {
	return &Observable[T]{}
}

// NewObservableOf creates an Observable holding v.
func NewObservableOf[T comparable](v T) *Observable[T] {
	return &Observable[T]{value: v, present: true}
}

// Get returns the current value. The boolean is false while no value is held.
func (o *Observable[T]) Get() (T, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value, o.present
}

// Set stores v and notifies listeners, unless v equals the value already held.
func (o *Observable[T]) Set(v T) {
	o.guard()
	o.mu.Lock()
	if o.present && o.value == v {
		o.mu.Unlock()
		return
	}
	o.value = v
	o.present = true
	listeners := o.snapshotLocked()
	o.mu.Unlock()

	o.notify(listeners)
}

// Clear drops the held value. Listeners are notified if a value was present.
func (o *Observable[T]) Clear() {
	o.guard()
	o.mu.Lock()
	if !o.present {
		o.mu.Unlock()
		return
	}
	var zero T
	o.value = zero
	o.present = false
	listeners := o.snapshotLocked()
	o.mu.Unlock()

	o.notify(listeners)
}

// Register appends fn to the listener list. Duplicates are kept.
func (o *Observable[T]) Register(fn func()) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Listeners returns the number of registered listeners.
func (o *Observable[T]) Listeners() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.listeners)
}

func (o *Observable[T]) guard() {
	if o.notifying.Load() {
		panic(ErrReentrantSet)
	}
}

func (o *Observable[T]) snapshotLocked() []func() {
	if len(o.listeners) == 0 {
		return nil
	}
	listeners := make([]func(), len(o.listeners))
	copy(listeners, o.listeners)
	return listeners
}

func (o *Observable[T]) notify(listeners []func()) {
	if len(listeners) == 0 {
		return
	}
	o.notifying.Store(true)
	defer o.notifying.Store(false)
	for _, fn := range listeners {
		fn()
	}
}

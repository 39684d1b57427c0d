package geo

import "sync"

// SampleFunc receives location samples pushed by a Watcher.
type SampleFunc func(Point)

// ErrorFunc receives sensor failures pushed by a Watcher.
type ErrorFunc func(error)

// CancelFunc tears down a watch subscription. Safe to call more than once.
type CancelFunc func()

// Watcher is a push-driven, cancellable source of location samples. Watch
// never blocks; the caller is resumed through the registered callbacks until
// the returned CancelFunc is invoked.
type Watcher interface {
	Watch(onSample SampleFunc, onError ErrorFunc) CancelFunc
}

// PushWatcher is a Watcher fed externally, typically by the ingestion API or
// by scripted fixtures in tests. Samples pushed while nobody is watching are
// dropped.
type PushWatcher struct {
	mu       sync.Mutex
	gen      uint64
	onSample SampleFunc
	onError  ErrorFunc
}

// NewPushWatcher constructs an idle PushWatcher.
func NewPushWatcher() *PushWatcher {
	return &PushWatcher{}
}

// Watch registers the subscriber callbacks, replacing any previous subscriber.
// Cancelling an already-replaced subscription is a no-op.
func (w *PushWatcher) Watch(onSample SampleFunc, onError ErrorFunc) CancelFunc {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.onSample = onSample
	w.onError = onError
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if w.gen == gen {
			w.onSample = nil
			w.onError = nil
		}
		w.mu.Unlock()
	}
}

// Push delivers a sample to the current subscriber, if any.
func (w *PushWatcher) Push(p Point) {
	w.mu.Lock()
	handler := w.onSample
	w.mu.Unlock()
	if handler != nil {
		handler(p)
	}
}

// Fail delivers a sensor failure to the current subscriber, if any.
func (w *PushWatcher) Fail(err error) {
	w.mu.Lock()
	handler := w.onError
	w.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushWatcherDeliversSamplesAndErrors(t *testing.T) {
	watcher := NewPushWatcher()

	var samples []Point
	var errs []error
	cancel := watcher.Watch(
		func(p Point) { samples = append(samples, p) },
		func(err error) { errs = append(errs, err) },
	)
	defer cancel()

	p := Point{Lat: 1, Lon: 2, At: time.Now()}
	watcher.Push(p)
	watcher.Fail(ErrPositionUnavailable)

	require.Len(t, samples, 1)
	require.Equal(t, p, samples[0])
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrPositionUnavailable)
}

func TestPushWatcherCancelStopsDelivery(t *testing.T) {
	watcher := NewPushWatcher()

	var count int
	cancel := watcher.Watch(func(Point) { count++ }, nil)

	watcher.Push(Point{At: time.Now()})
	cancel()
	watcher.Push(Point{At: time.Now()})

	require.Equal(t, 1, count)
}

func TestPushWatcherDropsWithoutSubscriber(t *testing.T) {
	watcher := NewPushWatcher()
	watcher.Push(Point{At: time.Now()})
	watcher.Fail(ErrPositionUnavailable)
}

func TestPushWatcherStaleCancelDoesNotAffectNewSubscriber(t *testing.T) {
	watcher := NewPushWatcher()

	var first, second int
	cancelFirst := watcher.Watch(func(Point) { first++ }, nil)
	watcher.Watch(func(Point) { second++ }, nil)

	// The first subscription was already replaced; its cancel is a no-op.
	cancelFirst()
	watcher.Push(Point{At: time.Now()})

	require.Zero(t, first)
	require.Equal(t, 1, second)
}

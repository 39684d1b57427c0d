// Package track records an active run's path and turns finished paths into
// territory claims.
package track

import (
	"errors"
	"sync"

	"github.com/dhiryansd999-cell/runrealm/internal/geo"
)

var (
	// ErrAlreadyRecording is returned by Start while a recording is active.
	ErrAlreadyRecording = errors.New("recorder already recording")
	// ErrNotRecording is returned when no recording is active.
	ErrNotRecording = errors.New("recorder not recording")
	// ErrPathTooShort is returned by Stop when fewer than two points were
	// recorded; a single point cannot define a territory.
	ErrPathTooShort = errors.New("path too short")
)

// Recorder accumulates time-ordered points for the single active run. It owns
// the in-progress path exclusively; callers receive a finalized copy on Stop.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	points    []geo.Point
	distance  float64
}

// NewRecorder constructs an idle Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start clears any previous path and begins recording.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}
	r.recording = true
	r.points = nil
	r.distance = 0
	return nil
}

// Append records a sample if it is strictly newer than the last recorded
// point. Stale or out-of-order samples are dropped silently, which keeps the
// path totally ordered despite out-of-order delivery. The running distance is
// updated incrementally, O(1) per sample.
func (r *Recorder) Append(p geo.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return ErrNotRecording
	}
	if n := len(r.points); n > 0 {
		last := r.points[n-1]
		if !p.At.After(last.At) {
			return nil
		}
		r.distance += geo.Haversine(last, p)
	}
	r.points = append(r.points, p)
	return nil
}

// DistanceMeters returns the running sum of great-circle distances between
// consecutive recorded points.
func (r *Recorder) DistanceMeters() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.distance
}

// Recording reports whether a run is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// LastPoint returns the most recent recorded point, if any.
func (r *Recorder) LastPoint() (geo.Point, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.points) == 0 {
		return geo.Point{}, false
	}
	return r.points[len(r.points)-1], true
}

// Stop finalizes the recording and returns an owned copy of the path. The
// recorder returns to idle either way; a path with fewer than two points
// yields ErrPathTooShort and is discarded.
func (r *Recorder) Stop() ([]geo.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil, ErrNotRecording
	}
	r.recording = false
	points := r.points
	r.points = nil

	if len(points) < 2 {
		return nil, ErrPathTooShort
	}
	out := make([]geo.Point, len(points))
	copy(out, points)
	return out, nil
}

// Discard drops any in-progress path and returns the recorder to idle. Used
// on forced sign-out, where the run is intentionally not persisted.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.points = nil
	r.distance = 0
}

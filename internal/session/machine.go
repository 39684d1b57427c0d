// Package session owns the per-user onboarding and tracking state machine.
// It is the single source of truth for view state; every flag the API exposes
// is derived from the machine's current state.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dhiryansd999-cell/runrealm/internal/domain"
	"github.com/dhiryansd999-cell/runrealm/internal/geo"
	"github.com/dhiryansd999-cell/runrealm/internal/observability"
	"github.com/dhiryansd999-cell/runrealm/internal/profile"
	"github.com/dhiryansd999-cell/runrealm/internal/track"
)

// State enumerates the onboarding lifecycle.
type State string

const (
	StateSignedOut        State = "signed_out"
	StateAuthenticating   State = "authenticating"
	StateProfileRequired  State = "profile_required"
	StateProfileSubmitted State = "profile_submitted"
	StateReady            State = "ready"
)

var (
	// ErrInvalidTransition is returned when an event is not legal in the
	// machine's current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrNotTracking is returned by StopTracking outside a run.
	ErrNotTracking = errors.New("not tracking")
)

// Snapshot is the externally visible machine state.
type Snapshot struct {
	UID            string          `json:"uid"`
	State          State           `json:"state"`
	Tracking       bool            `json:"tracking"`
	DistanceMeters float64         `json:"distance_meters"`
	UserLocation   *geo.Point      `json:"user_location,omitempty"`
	Profile        *domain.Profile `json:"profile,omitempty"`
}

// ObserverFunc receives machine snapshots after every state change.
type ObserverFunc func(Snapshot)

// ClaimResult is the outcome of a successfully completed run.
type ClaimResult struct {
	Territory domain.Territory
	Moment    domain.Moment
	Profile   domain.Profile
	// RewardApplied is false when the moment had already been credited.
	RewardApplied bool
}

// Machine drives one user's session through onboarding and tracking. All
// events funnel through its mutex, giving the single logical thread of
// control the design assumes; external calls (store writes, claim builds)
// happen outside the lock so that re-entrant notifications cannot deadlock.
type Machine struct {
	uid     string
	realmID string

	sync     *profile.Synchronizer
	repo     domain.Repository
	recorder *track.Recorder
	builder  *track.Builder
	watcher  geo.Watcher
	now      func() time.Time

	mu            sync.Mutex
	state         State
	tracking      bool
	profile       *domain.Profile
	location      *geo.Point
	cancelWatch   geo.CancelFunc
	cancelProfile profile.CancelFunc
	nextObs       uint64
	observers     map[uint64]ObserverFunc
}

// Config collects the machine's collaborators.
type Config struct {
	UID          string
	RealmID      string
	Synchronizer *profile.Synchronizer
	Repository   domain.Repository
	Builder      *track.Builder
	Watcher      geo.Watcher
	Now          func() time.Time
}

// NewMachine constructs a machine in SignedOut.
func NewMachine(cfg Config) *Machine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		uid:       cfg.UID,
		realmID:   cfg.RealmID,
		sync:      cfg.Synchronizer,
		repo:      cfg.Repository,
		recorder:  track.NewRecorder(),
		builder:   cfg.Builder,
		watcher:   cfg.Watcher,
		now:       now,
		state:     StateSignedOut,
		observers: make(map[uint64]ObserverFunc),
	}
}

// SignIn moves SignedOut into Authenticating and resolves the onboarding
// branch from the profile store: a new user lands in ProfileRequired, a
// returning user in Ready. A store failure with no cached profile reverts to
// SignedOut, leaving sign-in retryable.
func (m *Machine) SignIn(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateSignedOut {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.state = StateAuthenticating
	m.mu.Unlock()
	m.notify()

	cancel, err := m.sync.Subscribe(ctx, m.uid, m.onProfileSnapshot)
	if err != nil {
		m.mu.Lock()
		m.state = StateSignedOut
		m.mu.Unlock()
		m.notify()
		return err
	}

	m.mu.Lock()
	m.cancelProfile = cancel
	m.mu.Unlock()
	return nil
}

// onProfileSnapshot applies store notifications in delivery order. It both
// resolves the Authenticating branch and confirms the ProfileSubmitted write.
func (m *Machine) onProfileSnapshot(snap profile.Snapshot) {
	m.mu.Lock()
	switch {
	case m.state == StateSignedOut:
		// Late notification after teardown; the view is gone.
		m.mu.Unlock()
		return
	case snap.NewUser:
		if m.state == StateAuthenticating {
			m.state = StateProfileRequired
		}
	default:
		m.profile = snap.Profile
		if m.state == StateAuthenticating || m.state == StateProfileSubmitted {
			m.state = StateReady
		}
	}
	m.mu.Unlock()
	m.notify()
}

// SubmitProfile persists the onboarding form. The machine sits in
// ProfileSubmitted until the synchronizer confirms the write; a handle
// conflict reverts to ProfileRequired for resubmission.
func (m *Machine) SubmitProfile(ctx context.Context, displayName, handle, bio string) error {
	m.mu.Lock()
	if m.state != StateProfileRequired {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.state = StateProfileSubmitted
	m.mu.Unlock()
	m.notify()

	prof := domain.NewProfile(m.uid, displayName, handle, bio, m.now())
	if err := m.sync.Create(ctx, prof); err != nil {
		m.mu.Lock()
		m.state = StateProfileRequired
		m.mu.Unlock()
		m.notify()
		return err
	}
	return nil
}

// StartTracking begins a run. Legal only in Ready while not tracking.
func (m *Machine) StartTracking() error {
	m.mu.Lock()
	if m.state != StateReady || m.tracking {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	if err := m.recorder.Start(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.tracking = true
	m.cancelWatch = m.watcher.Watch(m.onSample, m.onSensorError)
	m.mu.Unlock()

	observability.RecordSessionStarted()
	m.notify()
	return nil
}

func (m *Machine) onSample(p geo.Point) {
	m.mu.Lock()
	if !m.tracking {
		m.mu.Unlock()
		return
	}
	loc := p
	m.location = &loc
	m.mu.Unlock()

	// Stale samples are filtered by the recorder's monotonic check.
	_ = m.recorder.Append(p)
	m.notify()
}

// onSensorError ends the run without a claim. The failure is recoverable;
// the user remains in Ready and can start again.
func (m *Machine) onSensorError(err error) {
	m.mu.Lock()
	if !m.tracking {
		m.mu.Unlock()
		return
	}
	m.teardownTrackingLocked()
	m.mu.Unlock()

	m.recorder.Discard()
	observability.RecordSessionAborted("position_unavailable")
	m.notify()
}

// StopTracking finalizes the run: the path becomes a territory claim and the
// derived XP is credited. PathTooShort and DegenerateTerritory discard the
// path and return to NotTracking with no profile or territory change.
func (m *Machine) StopTracking(ctx context.Context) (*ClaimResult, error) {
	m.mu.Lock()
	if !m.tracking {
		m.mu.Unlock()
		return nil, ErrNotTracking
	}
	m.teardownTrackingLocked()
	m.mu.Unlock()
	defer m.notify()

	path, err := m.recorder.Stop()
	if err != nil {
		observability.RecordSessionAborted("path_too_short")
		return nil, err
	}

	territory, moment, err := m.builder.BuildClaim(path, m.realmID, m.uid, m.now())
	if err != nil {
		observability.RecordSessionAborted("degenerate_territory")
		return nil, err
	}

	if err := m.repo.SaveClaim(ctx, territory, moment); err != nil {
		return nil, err
	}
	prof, applied, err := m.sync.ApplyReward(ctx, m.uid, moment)
	if err != nil {
		return nil, err
	}

	observability.RecordTerritoryClaimed(territory.AreaSqM)
	observability.RecordMomentRecorded(moment.XPAwarded)

	return &ClaimResult{
		Territory:     territory,
		Moment:        moment,
		Profile:       *prof,
		RewardApplied: applied,
	}, nil
}

// SignOut forces the machine to SignedOut from any state, discarding any
// in-progress path. A run interrupted by sign-out is never persisted.
func (m *Machine) SignOut() {
	m.mu.Lock()
	m.teardownTrackingLocked()
	if m.cancelProfile != nil {
		m.cancelProfile()
		m.cancelProfile = nil
	}
	m.state = StateSignedOut
	m.profile = nil
	m.location = nil
	m.mu.Unlock()

	m.recorder.Discard()
	m.notify()
}

// teardownTrackingLocked cancels the geo subscription and clears the tracking
// flag. Callers hold m.mu.
func (m *Machine) teardownTrackingLocked() {
	if m.cancelWatch != nil {
		m.cancelWatch()
		m.cancelWatch = nil
	}
	m.tracking = false
}

// Snapshot derives the current view state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		UID:            m.uid,
		State:          m.state,
		Tracking:       m.tracking,
		DistanceMeters: m.recorder.DistanceMeters(),
	}
	if m.location != nil {
		loc := *m.location
		snap.UserLocation = &loc
	}
	if m.profile != nil {
		prof := *m.profile
		snap.Profile = &prof
	}
	return snap
}

// Observe registers a snapshot observer, delivering the current snapshot
// immediately. The returned cancel releases the observer.
func (m *Machine) Observe(fn ObserverFunc) func() {
	m.mu.Lock()
	m.nextObs++
	id := m.nextObs
	m.observers[id] = fn
	snap := m.snapshotLocked()
	m.mu.Unlock()

	fn(snap)

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

func (m *Machine) notify() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	fns := make([]ObserverFunc, 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

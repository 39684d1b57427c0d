package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dhiryansd999-cell/runrealm/internal/domain"
	"github.com/dhiryansd999-cell/runrealm/internal/geo"
	"github.com/dhiryansd999-cell/runrealm/internal/persistence/memory"
	"github.com/dhiryansd999-cell/runrealm/internal/profile"
	"github.com/dhiryansd999-cell/runrealm/internal/track"
)

const testRealm = "run-realm-v1"

type fixture struct {
	machine *Machine
	watcher *geo.PushWatcher
	store   *memory.Store
	clock   time.Time
}

func newFixture(t *testing.T, uid string) *fixture {
	t.Helper()
	store := memory.NewStore()
	watcher := geo.NewPushWatcher()
	f := &fixture{
		watcher: watcher,
		store:   store,
		clock:   time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC),
	}
	f.machine = NewMachine(Config{
		UID:          uid,
		RealmID:      testRealm,
		Synchronizer: profile.NewSynchronizer(store, testRealm),
		Repository:   store,
		Builder:      track.NewBuilder(0),
		Watcher:      watcher,
		Now:          func() time.Time { return f.clock },
	})
	return f
}

// signInReady walks a fresh user through onboarding into Ready.
func (f *fixture) signInReady(t *testing.T) {
	t.Helper()
	require.NoError(t, f.machine.SignIn(context.Background()))
	require.Equal(t, StateProfileRequired, f.machine.Snapshot().State)
	require.NoError(t, f.machine.SubmitProfile(context.Background(), "Ada Lovelace", "Ada Lovelace", "first programmer"))
	require.Equal(t, StateReady, f.machine.Snapshot().State)
}

// pushLoop feeds a closed square roughly 33m on a side.
func (f *fixture) pushLoop() {
	corners := [][2]float64{{0, 0}, {0, 0.0003}, {0.0003, 0.0003}, {0.0003, 0}}
	for _, c := range corners {
		f.clock = f.clock.Add(30 * time.Second)
		f.watcher.Push(geo.Point{Lat: c[0], Lon: c[1], At: f.clock})
	}
}

func TestOnboardingNewUser(t *testing.T) {
	f := newFixture(t, "user-1")
	f.signInReady(t)

	snap := f.machine.Snapshot()
	require.NotNil(t, snap.Profile)
	require.Equal(t, "adalovelace", snap.Profile.Handle)
	require.Equal(t, 1, snap.Profile.Level)
	require.Zero(t, snap.Profile.XP)
	require.False(t, snap.Tracking)
}

func TestSignInReturningUserSkipsOnboarding(t *testing.T) {
	store := memory.NewStore()
	existing := domain.NewProfile("user-1", "Ada", "ada", "", time.Now())
	require.NoError(t, store.CreateProfile(context.Background(), testRealm, existing))

	watcher := geo.NewPushWatcher()
	m := NewMachine(Config{
		UID:          "user-1",
		RealmID:      testRealm,
		Synchronizer: profile.NewSynchronizer(store, testRealm),
		Repository:   store,
		Builder:      track.NewBuilder(0),
		Watcher:      watcher,
	})

	require.NoError(t, m.SignIn(context.Background()))
	snap := m.Snapshot()
	require.Equal(t, StateReady, snap.State)
	require.Equal(t, "ada", snap.Profile.Handle)
}

func TestFullRunClaimsTerritoryAndCreditsXP(t *testing.T) {
	f := newFixture(t, "user-1")
	f.signInReady(t)

	require.NoError(t, f.machine.StartTracking())
	require.True(t, f.machine.Snapshot().Tracking)

	f.pushLoop()

	snap := f.machine.Snapshot()
	require.NotNil(t, snap.UserLocation)
	require.Greater(t, snap.DistanceMeters, 99.0)

	result, err := f.machine.StopTracking(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 1112, result.Territory.AreaSqM, 30)
	require.Equal(t, result.Territory.ID, result.Moment.TerritoryID)
	require.True(t, result.RewardApplied)
	require.Equal(t, result.Moment.XPAwarded, result.Profile.XP)

	after := f.machine.Snapshot()
	require.Equal(t, StateReady, after.State)
	require.False(t, after.Tracking)
	require.Equal(t, result.Profile.XP, after.Profile.XP)

	territories, _, err := f.store.ListTerritories(context.Background(), testRealm, "user-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, territories, 1)
}

func TestStopWithStraightPathDiscardsRun(t *testing.T) {
	f := newFixture(t, "user-1")
	f.signInReady(t)
	require.NoError(t, f.machine.StartTracking())

	for i, lon := range []float64{0, 0.001, 0.002} {
		f.watcher.Push(geo.Point{Lat: 0, Lon: lon, At: f.clock.Add(time.Duration(i) * time.Minute)})
	}

	_, err := f.machine.StopTracking(context.Background())
	require.ErrorIs(t, err, track.ErrDegenerateTerritory)

	snap := f.machine.Snapshot()
	require.Equal(t, StateReady, snap.State)
	require.False(t, snap.Tracking)
	require.Zero(t, snap.Profile.XP)

	territories, _, err := f.store.ListTerritories(context.Background(), testRealm, "user-1", nil, 10)
	require.NoError(t, err)
	require.Empty(t, territories)

	// The aborted run does not wedge the machine.
	require.NoError(t, f.machine.StartTracking())
}

func TestStopWithSinglePointPathTooShort(t *testing.T) {
	f := newFixture(t, "user-1")
	f.signInReady(t)
	require.NoError(t, f.machine.StartTracking())

	f.watcher.Push(geo.Point{Lat: 0, Lon: 0, At: f.clock})

	_, err := f.machine.StopTracking(context.Background())
	require.ErrorIs(t, err, track.ErrPathTooShort)
	require.False(t, f.machine.Snapshot().Tracking)
}

func TestSensorErrorAbortsRunRecoverably(t *testing.T) {
	f := newFixture(t, "user-1")
	f.signInReady(t)
	require.NoError(t, f.machine.StartTracking())
	f.pushLoop()

	f.watcher.Fail(geo.ErrPositionUnavailable)

	snap := f.machine.Snapshot()
	require.Equal(t, StateReady, snap.State)
	require.False(t, snap.Tracking)
	require.Zero(t, snap.DistanceMeters)

	// The next run starts from an empty path.
	require.NoError(t, f.machine.StartTracking())
	result, err := f.machine.StopTracking(context.Background())
	require.Nil(t, result)
	require.ErrorIs(t, err, track.ErrPathTooShort)
}

func TestSignOutDuringRunDiscardsPath(t *testing.T) {
	f := newFixture(t, "user-1")
	f.signInReady(t)
	require.NoError(t, f.machine.StartTracking())
	f.pushLoop()

	f.machine.SignOut()

	snap := f.machine.Snapshot()
	require.Equal(t, StateSignedOut, snap.State)
	require.False(t, snap.Tracking)
	require.Nil(t, snap.Profile)

	territories, _, err := f.store.ListTerritories(context.Background(), testRealm, "user-1", nil, 10)
	require.NoError(t, err)
	require.Empty(t, territories)

	// Samples pushed after sign-out are ignored.
	f.watcher.Push(geo.Point{Lat: 1, Lon: 1, At: f.clock.Add(time.Hour)})
	require.Nil(t, f.machine.Snapshot().UserLocation)
}

func TestHandleConflictRevertsToProfileRequired(t *testing.T) {
	store := memory.NewStore()
	taken := domain.NewProfile("user-0", "Ada", "ada", "", time.Now())
	require.NoError(t, store.CreateProfile(context.Background(), testRealm, taken))

	watcher := geo.NewPushWatcher()
	m := NewMachine(Config{
		UID:          "user-1",
		RealmID:      testRealm,
		Synchronizer: profile.NewSynchronizer(store, testRealm),
		Repository:   store,
		Builder:      track.NewBuilder(0),
		Watcher:      watcher,
	})
	require.NoError(t, m.SignIn(context.Background()))

	err := m.SubmitProfile(context.Background(), "Other Ada", "ADA", "")
	require.ErrorIs(t, err, domain.ErrHandleConflict)
	require.Equal(t, StateProfileRequired, m.Snapshot().State)

	require.NoError(t, m.SubmitProfile(context.Background(), "Other Ada", "ada2", ""))
	require.Equal(t, StateReady, m.Snapshot().State)
}

func TestInvalidTransitions(t *testing.T) {
	f := newFixture(t, "user-1")

	require.ErrorIs(t, f.machine.StartTracking(), ErrInvalidTransition)
	require.ErrorIs(t, f.machine.SubmitProfile(context.Background(), "a", "a", ""), ErrInvalidTransition)

	_, err := f.machine.StopTracking(context.Background())
	require.ErrorIs(t, err, ErrNotTracking)

	f.signInReady(t)
	require.ErrorIs(t, f.machine.SignIn(context.Background()), ErrInvalidTransition)

	require.NoError(t, f.machine.StartTracking())
	require.ErrorIs(t, f.machine.StartTracking(), ErrInvalidTransition)
}

func TestObserverSeesLifecycle(t *testing.T) {
	f := newFixture(t, "user-1")

	var states []State
	cancel := f.machine.Observe(func(s Snapshot) { states = append(states, s.State) })
	defer cancel()

	f.signInReady(t)

	require.Equal(t, StateSignedOut, states[0])
	require.Contains(t, states, StateAuthenticating)
	require.Contains(t, states, StateProfileRequired)
	require.Contains(t, states, StateProfileSubmitted)
	require.Equal(t, StateReady, states[len(states)-1])
}

package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dhiryansd999-cell/runrealm/internal/domain"
	"github.com/dhiryansd999-cell/runrealm/internal/persistence/memory"
)

const testRealm = "run-realm-v1"

func TestSubscribeNewUserSentinel(t *testing.T) {
	sync := NewSynchronizer(memory.NewStore(), testRealm)

	var got []Snapshot
	cancel, err := sync.Subscribe(context.Background(), "user-1", func(s Snapshot) {
		got = append(got, s)
	})
	require.NoError(t, err)
	defer cancel()

	require.Len(t, got, 1)
	require.True(t, got[0].NewUser)
	require.Nil(t, got[0].Profile)
}

func TestCreateNotifiesSubscribers(t *testing.T) {
	store := memory.NewStore()
	sync := NewSynchronizer(store, testRealm)

	var got []Snapshot
	cancel, err := sync.Subscribe(context.Background(), "user-1", func(s Snapshot) {
		got = append(got, s)
	})
	require.NoError(t, err)
	defer cancel()

	prof := domain.NewProfile("user-1", "Ada Lovelace", "Ada Lovelace", "", time.Now())
	require.NoError(t, sync.Create(context.Background(), prof))

	require.Len(t, got, 2)
	require.False(t, got[1].NewUser)
	require.Equal(t, "adalovelace", got[1].Profile.Handle)
	require.Equal(t, 1, got[1].Profile.Level)
}

func TestCreateHandleConflict(t *testing.T) {
	store := memory.NewStore()
	sync := NewSynchronizer(store, testRealm)

	first := domain.NewProfile("user-1", "Ada", "runner", "", time.Now())
	require.NoError(t, sync.Create(context.Background(), first))

	second := domain.NewProfile("user-2", "Grace", "RUN NER", "", time.Now())
	err := sync.Create(context.Background(), second)
	require.ErrorIs(t, err, domain.ErrHandleConflict)

	// The loser's profile must not exist.
	_, err = store.GetProfile(context.Background(), testRealm, "user-2")
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestCancelStopsNotifications(t *testing.T) {
	sync := NewSynchronizer(memory.NewStore(), testRealm)

	var got int
	cancel, err := sync.Subscribe(context.Background(), "user-1", func(Snapshot) { got++ })
	require.NoError(t, err)
	require.Equal(t, 1, got)
	cancel()

	prof := domain.NewProfile("user-1", "Ada", "ada", "", time.Now())
	require.NoError(t, sync.Create(context.Background(), prof))
	require.Equal(t, 1, got)
}

func TestUpdateReplacesMutableFields(t *testing.T) {
	store := memory.NewStore()
	sync := NewSynchronizer(store, testRealm)

	prof := domain.NewProfile("user-1", "Ada", "ada", "", time.Now())
	require.NoError(t, sync.Create(context.Background(), prof))

	var got []Snapshot
	cancel, err := sync.Subscribe(context.Background(), "user-1", func(s Snapshot) {
		got = append(got, s)
	})
	require.NoError(t, err)
	defer cancel()

	updated, err := sync.Update(context.Background(), "user-1", "Ada Lovelace", "first programmer")
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", updated.DisplayName)
	require.Equal(t, "first programmer", updated.Bio)
	require.Equal(t, "ada", updated.Handle)

	require.Len(t, got, 2)
	require.Equal(t, "Ada Lovelace", got[1].Profile.DisplayName)

	_, err = sync.Update(context.Background(), "user-2", "Nobody", "")
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestApplyRewardIdempotent(t *testing.T) {
	store := memory.NewStore()
	sync := NewSynchronizer(store, testRealm)

	prof := domain.NewProfile("user-1", "Ada", "ada", "", time.Now())
	require.NoError(t, sync.Create(context.Background(), prof))

	moment := domain.Moment{
		ID:        "moment-1",
		RealmID:   testRealm,
		OwnerUID:  "user-1",
		XPAwarded: 120,
	}

	updated, applied, err := sync.ApplyReward(context.Background(), "user-1", moment)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, int64(120), updated.XP)
	require.Equal(t, 2, updated.Level)

	replayed, applied, err := sync.ApplyReward(context.Background(), "user-1", moment)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, int64(120), replayed.XP)
	require.Equal(t, 2, replayed.Level)
}

// racingStore simulates a profile creation committing while a subscriber's
// initial read is in flight: the read observes the pre-commit state and
// reports the document missing, after the change notification already fired.
type racingStore struct {
	domain.Repository
	sync  *Synchronizer
	prof  domain.Profile
	fired bool
}

func (r *racingStore) GetProfile(ctx context.Context, realmID, uid string) (*domain.Profile, error) {
	if !r.fired {
		r.fired = true
		if err := r.sync.Create(ctx, r.prof); err != nil {
			return nil, err
		}
		return nil, domain.ErrProfileNotFound
	}
	return r.Repository.GetProfile(ctx, realmID, uid)
}

func TestSubscribeDiscardsStaleInitialSnapshot(t *testing.T) {
	store := &racingStore{
		Repository: memory.NewStore(),
		prof:       domain.NewProfile("user-1", "Ada", "ada", "", time.Now()),
	}
	sync := NewSynchronizer(store, testRealm)
	store.sync = sync

	var got []Snapshot
	cancel, err := sync.Subscribe(context.Background(), "user-1", func(s Snapshot) {
		got = append(got, s)
	})
	require.NoError(t, err)
	defer cancel()

	// The subscriber sees exactly the created profile, never a new-user
	// sentinel delivered after it.
	require.Len(t, got, 1)
	require.False(t, got[0].NewUser)
	require.NotNil(t, got[0].Profile)
	require.Equal(t, "ada", got[0].Profile.Handle)
}

type flakyStore struct {
	domain.Repository
	fail bool
}

func (f *flakyStore) GetProfile(ctx context.Context, realmID, uid string) (*domain.Profile, error) {
	if f.fail {
		return nil, domain.ErrStoreUnavailable
	}
	return f.Repository.GetProfile(ctx, realmID, uid)
}

func TestCurrentFallsBackToCacheWhenStoreUnavailable(t *testing.T) {
	inner := memory.NewStore()
	flaky := &flakyStore{Repository: inner}
	sync := NewSynchronizer(flaky, testRealm)

	prof := domain.NewProfile("user-1", "Ada", "ada", "", time.Now())
	require.NoError(t, sync.Create(context.Background(), prof))

	flaky.fail = true

	snap, err := sync.Current(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, snap.Profile)
	require.Equal(t, "ada", snap.Profile.Handle)

	// No cached snapshot for an unknown user surfaces the store error.
	_, err = sync.Current(context.Background(), "user-2")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

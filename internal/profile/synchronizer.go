// Package profile keeps the local view of user profiles in sync with the
// backing document store and applies run rewards.
package profile

import (
	"context"
	"errors"
	"sync"

	"github.com/dhiryansd999-cell/runrealm/internal/domain"
)

// Snapshot is one delivered profile state. NewUser marks the sentinel state
// for a subscribed user with no profile document yet; that branch routes
// onboarding into profile creation instead of failing.
type Snapshot struct {
	Profile *domain.Profile
	NewUser bool
}

// SnapshotFunc receives profile snapshots in commit order.
type SnapshotFunc func(Snapshot)

// CancelFunc tears down a profile subscription.
type CancelFunc func()

// Synchronizer mirrors profile documents from the repository, fans change
// notifications out to subscribers, and owns the XP/level update path. The
// realm identifier is an explicit construction-time value, never ambient.
type Synchronizer struct {
	repo    domain.Repository
	realmID string

	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*subscriber
	cache  map[string]domain.Profile
}

// subscriber tracks one subscription. delivered flips once the first snapshot
// has been handed to fn, whether that was the initial read or a concurrent
// change that landed first.
type subscriber struct {
	fn        SnapshotFunc
	delivered bool
}

// NewSynchronizer constructs a Synchronizer for one realm.
func NewSynchronizer(repo domain.Repository, realmID string) *Synchronizer {
	return &Synchronizer{
		repo:    repo,
		realmID: realmID,
		subs:    make(map[string]map[uint64]*subscriber),
		cache:   make(map[string]domain.Profile),
	}
}

// Subscribe delivers the user's current snapshot, then every subsequent
// change until cancelled. A missing document yields the new-user sentinel.
// When the store is unreachable the last cached snapshot is delivered
// instead, if one exists.
//
// The subscription is registered before the initial read. A change committed
// while the read is in flight reaches the subscriber as its first snapshot,
// and the now stale initial read is discarded rather than delivered after it.
func (s *Synchronizer) Subscribe(ctx context.Context, uid string, fn SnapshotFunc) (CancelFunc, error) {
	sub := &subscriber{fn: fn}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.subs[uid] == nil {
		s.subs[uid] = make(map[uint64]*subscriber)
	}
	s.subs[uid][id] = sub
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs[uid], id)
		s.mu.Unlock()
	}

	snapshot, err := s.Current(ctx, uid)
	if err != nil {
		cancel()
		return nil, err
	}

	// Delivered under the lock, like notify, so a concurrent change cannot
	// reorder ahead of the initial snapshot.
	s.mu.Lock()
	if !sub.delivered {
		sub.delivered = true
		fn(snapshot)
	}
	s.mu.Unlock()

	return cancel, nil
}

// Current resolves the user's present snapshot, falling back to the cached
// profile when the store is unavailable.
func (s *Synchronizer) Current(ctx context.Context, uid string) (Snapshot, error) {
	prof, err := s.repo.GetProfile(ctx, s.realmID, uid)
	switch {
	case err == nil:
		s.remember(*prof)
		return Snapshot{Profile: prof}, nil
	case errors.Is(err, domain.ErrProfileNotFound):
		return Snapshot{NewUser: true}, nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.mu.Lock()
		cached, ok := s.cache[uid]
		s.mu.Unlock()
		if ok {
			return Snapshot{Profile: &cached}, nil
		}
		return Snapshot{}, err
	default:
		return Snapshot{}, err
	}
}

// Create persists a new profile document. Handle uniqueness is enforced by
// the store; a conflict surfaces as domain.ErrHandleConflict and no profile
// state advances.
func (s *Synchronizer) Create(ctx context.Context, prof domain.Profile) error {
	prof.Handle = domain.NormalizeHandle(prof.Handle)
	if err := s.repo.CreateProfile(ctx, s.realmID, prof); err != nil {
		return err
	}
	s.remember(prof)
	s.notify(prof)
	return nil
}

// Update replaces the mutable profile fields. The handle is fixed once
// claimed; progression fields are owned by the reward path.
func (s *Synchronizer) Update(ctx context.Context, uid, displayName, bio string) (*domain.Profile, error) {
	prof, err := s.repo.GetProfile(ctx, s.realmID, uid)
	if err != nil {
		return nil, err
	}
	prof.DisplayName = displayName
	prof.Bio = bio
	if err := s.repo.PutProfile(ctx, s.realmID, *prof); err != nil {
		return nil, err
	}
	s.remember(*prof)
	s.notify(*prof)
	return prof, nil
}

// ApplyReward credits a completed moment's XP to the owner, idempotently per
// moment. Replays return the current profile with applied=false.
func (s *Synchronizer) ApplyReward(ctx context.Context, uid string, moment domain.Moment) (*domain.Profile, bool, error) {
	prof, applied, err := s.repo.ApplyReward(ctx, s.realmID, uid, moment)
	if err != nil {
		return nil, false, err
	}
	s.remember(*prof)
	s.notify(*prof)
	return prof, applied, nil
}

func (s *Synchronizer) remember(prof domain.Profile) {
	s.mu.Lock()
	s.cache[prof.UID] = prof
	s.mu.Unlock()
}

// notify delivers the snapshot to all subscribers of the profile's user.
// Delivery happens under the lock, which preserves commit order per user.
func (s *Synchronizer) notify(prof domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs[prof.UID] {
		p := prof
		sub.delivered = true
		sub.fn(Snapshot{Profile: &p})
	}
}

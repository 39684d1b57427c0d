// Package memory provides an in-memory Repository for local development and
// unit tests.
package memory

import (
	"context"
	"sync"

	"github.com/dhiryansd999-cell/runrealm/internal/domain"
)

type realmKey struct {
	realmID string
	uid     string
}

// Store keeps all realm state in process memory. It mirrors the Postgres
// repository's contract, including store-side handle uniqueness and the
// per-moment reward ledger.
type Store struct {
	mu          sync.RWMutex
	profiles    map[realmKey]domain.Profile
	handles     map[string]string // realmID+"\x00"+handle -> uid
	territories map[string][]domain.Territory
	moments     map[string][]domain.Moment
	rewarded    map[string]struct{} // moment IDs already credited
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		profiles:    make(map[realmKey]domain.Profile),
		handles:     make(map[string]string),
		territories: make(map[string][]domain.Territory),
		moments:     make(map[string][]domain.Moment),
		rewarded:    make(map[string]struct{}),
	}
}

// GetProfile implements domain.Repository.
func (s *Store) GetProfile(ctx context.Context, realmID, uid string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prof, ok := s.profiles[realmKey{realmID, uid}]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &prof, nil
}

// CreateProfile implements domain.Repository. The handle index enforces
// uniqueness within the realm.
func (s *Store) CreateProfile(ctx context.Context, realmID string, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handleKey := realmID + "\x00" + profile.Handle
	if owner, taken := s.handles[handleKey]; taken && owner != profile.UID {
		return domain.ErrHandleConflict
	}
	s.handles[handleKey] = profile.UID
	s.profiles[realmKey{realmID, profile.UID}] = profile
	return nil
}

// PutProfile replaces the whole profile document.
func (s *Store) PutProfile(ctx context.Context, realmID string, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[realmKey{realmID, profile.UID}] = profile
	return nil
}

// SaveClaim stores a territory and its moment.
func (s *Store) SaveClaim(ctx context.Context, territory domain.Territory, moment domain.Moment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.territories[territory.RealmID] = append([]domain.Territory{territory}, s.territories[territory.RealmID]...)
	s.moments[moment.RealmID] = append([]domain.Moment{moment}, s.moments[moment.RealmID]...)
	return nil
}

// ApplyReward credits the moment's XP once; replays return the profile
// unchanged with applied=false.
func (s *Store) ApplyReward(ctx context.Context, realmID, uid string, moment domain.Moment) (*domain.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prof, ok := s.profiles[realmKey{realmID, uid}]
	if !ok {
		return nil, false, domain.ErrProfileNotFound
	}
	if _, done := s.rewarded[moment.ID]; done {
		return &prof, false, nil
	}

	prof.XP += moment.XPAwarded
	prof.Level = domain.LevelForXP(prof.XP)
	s.profiles[realmKey{realmID, uid}] = prof
	s.rewarded[moment.ID] = struct{}{}
	return &prof, true, nil
}

// ListTerritories returns the user's territories, newest first.
func (s *Store) ListTerritories(ctx context.Context, realmID, uid string, cursor *domain.Cursor, limit int) ([]domain.Territory, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.Territory, 0, limit)
	skipping := cursor != nil
	for _, t := range s.territories[realmID] {
		if t.OwnerUID != uid {
			continue
		}
		if skipping {
			if t.ID == cursor.ID {
				skipping = false
			}
			continue
		}
		results = append(results, t)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{At: last.ClaimedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListMoments returns the user's moments, newest first.
func (s *Store) ListMoments(ctx context.Context, realmID, uid string, cursor *domain.Cursor, limit int) ([]domain.Moment, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.Moment, 0, limit)
	skipping := cursor != nil
	for _, m := range s.moments[realmID] {
		if m.OwnerUID != uid {
			continue
		}
		if skipping {
			if m.ID == cursor.ID {
				skipping = false
			}
			continue
		}
		results = append(results, m)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{At: last.RecordedAt, ID: last.ID}
	}
	return results, next, nil
}

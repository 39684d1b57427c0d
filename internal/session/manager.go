package session

import (
	"sync"
	"time"

	"github.com/dhiryansd999-cell/runrealm/internal/domain"
	"github.com/dhiryansd999-cell/runrealm/internal/geo"
	"github.com/dhiryansd999-cell/runrealm/internal/profile"
	"github.com/dhiryansd999-cell/runrealm/internal/track"
)

// Manager hands out one Machine per user. Machines keep their PushWatcher so
// the ingestion API can feed samples into the active run.
type Manager struct {
	realmID string
	sync    *profile.Synchronizer
	repo    domain.Repository
	builder *track.Builder
	now     func() time.Time

	mu       sync.Mutex
	machines map[string]*entry
}

type entry struct {
	machine *Machine
	watcher *geo.PushWatcher
}

// NewManager constructs a Manager for one realm.
func NewManager(realmID string, sync *profile.Synchronizer, repo domain.Repository, builder *track.Builder, now func() time.Time) *Manager {
	return &Manager{
		realmID:  realmID,
		sync:     sync,
		repo:     repo,
		builder:  builder,
		now:      now,
		machines: make(map[string]*entry),
	}
}

// Acquire returns the user's machine and its sample feed, creating both on
// first use.
func (m *Manager) Acquire(uid string) (*Machine, *geo.PushWatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.machines[uid]; ok {
		return e.machine, e.watcher
	}

	watcher := geo.NewPushWatcher()
	machine := NewMachine(Config{
		UID:          uid,
		RealmID:      m.realmID,
		Synchronizer: m.sync,
		Repository:   m.repo,
		Builder:      m.builder,
		Watcher:      watcher,
		Now:          m.now,
	})
	m.machines[uid] = &entry{machine: machine, watcher: watcher}
	return machine, watcher
}

// SignOutAll forces every machine to SignedOut, e.g. on identity-provider
// revocation. In-progress paths are discarded.
func (m *Manager) SignOutAll() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.machines))
	for _, e := range m.machines {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.machine.SignOut()
	}
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/syncspace/spacesync/internal/engine"
	"github.com/syncspace/spacesync/internal/logger"
	"github.com/syncspace/spacesync/models"
)

// ManagerConfig carries the settings shared by every space's sync loop.
type ManagerConfig struct {
	DeviceToken  string
	DeviceType   string
	TickInterval time.Duration
	ReaskAfter   time.Duration
}

// Manager supervises one SpaceSyncer per space: it opens the space's store,
// dials the remote host, builds the engine and runs the loop. Spaces are
// fully independent; nothing is shared between their engines.
type Manager struct {
	cfg    ManagerConfig
	opener StoreOpener
	dial   Dialer
	log    *logger.Logger

	mu       sync.Mutex
	syncers  map[string]*SpaceSyncer
	statuses map[string]models.SyncStatus
}

// NewManager constructs a supervisor over a store opener and a dialer.
func NewManager(cfg ManagerConfig, opener StoreOpener, dial Dialer, log *logger.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		opener:   opener,
		dial:     dial,
		log:      log,
		syncers:  make(map[string]*SpaceSyncer),
		statuses: make(map[string]models.SyncStatus),
	}
}

// StartSpace opens the store and connection for one registry entry and
// launches its sync loop. Starting a space that is already running fails
// with ErrAlreadySyncing.
func (m *Manager) StartSpace(ctx context.Context, entry models.SpaceEntry) error {
	key := spaceKey(entry)

	m.mu.Lock()
	if _, running := m.syncers[key]; running {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadySyncing, entry.Name)
	}
	m.mu.Unlock()

	bs, err := m.opener.OpenStore(ctx, entry)
	if err != nil {
		return fmt.Errorf("open store for space %s: %w", entry.Name, err)
	}

	conn, err := m.dial(ctx)
	if err != nil {
		bs.Close()
		return fmt.Errorf("connect space %s: %w", entry.Name, err)
	}

	log := m.log.GetChildLogger("space", entry.Name)
	eng := engine.New(engine.Config{
		CreatorID:   entry.CreatorUUID,
		DeviceToken: m.cfg.DeviceToken,
		DeviceType:  m.cfg.DeviceType,
		ReaskAfter:  m.cfg.ReaskAfter,
	}, bs, conn, m.reporterFor(key), log)

	syncer := NewSpaceSyncer(eng, conn, bs, m.cfg.TickInterval, log)

	m.mu.Lock()
	if _, running := m.syncers[key]; running {
		m.mu.Unlock()
		conn.Close()
		bs.Close()
		return fmt.Errorf("%w: %s", ErrAlreadySyncing, entry.Name)
	}
	m.syncers[key] = syncer
	m.mu.Unlock()

	syncer.Start(ctx)
	m.log.Info().Str("space", entry.Name).Msg("space sync started")
	return nil
}

// StopSpace stops one space's sync loop.
func (m *Manager) StopSpace(entry models.SpaceEntry) error {
	key := spaceKey(entry)

	m.mu.Lock()
	syncer, ok := m.syncers[key]
	delete(m.syncers, key)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSyncing, entry.Name)
	}
	syncer.Stop()
	return nil
}

// StopAll stops every running sync loop and blocks until all have exited.
func (m *Manager) StopAll() {
	m.mu.Lock()
	syncers := make([]*SpaceSyncer, 0, len(m.syncers))
	for _, s := range m.syncers {
		syncers = append(syncers, s)
	}
	m.syncers = make(map[string]*SpaceSyncer)
	m.mu.Unlock()

	for _, s := range syncers {
		s.Stop()
	}
}

// StartSync forces a convergence round on one running space.
func (m *Manager) StartSync(ctx context.Context, entry models.SpaceEntry) error {
	m.mu.Lock()
	syncer, ok := m.syncers[spaceKey(entry)]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSyncing, entry.Name)
	}
	return syncer.StartSync(ctx)
}

// UpdateDeviceInfo pushes new device metadata to every running space.
func (m *Manager) UpdateDeviceInfo(ctx context.Context, token, deviceType string) error {
	m.mu.Lock()
	m.cfg.DeviceToken, m.cfg.DeviceType = token, deviceType
	syncers := make([]*SpaceSyncer, 0, len(m.syncers))
	for _, s := range m.syncers {
		syncers = append(syncers, s)
	}
	m.mu.Unlock()

	for _, s := range syncers {
		if err := s.UpdateDeviceInfo(ctx, token, deviceType); err != nil {
			return err
		}
	}
	return nil
}

// Statuses returns the latest progress snapshot reported by each space,
// keyed by "<space-uuid>/<creator-uuid>".
func (m *Manager) Statuses() map[string]models.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]models.SyncStatus, len(m.statuses))
	for k, v := range m.statuses {
		out[k] = v
	}
	return out
}

func (m *Manager) reporterFor(key string) engine.Reporter {
	return func(status models.SyncStatus) {
		m.mu.Lock()
		m.statuses[key] = status
		m.mu.Unlock()
	}
}

func spaceKey(entry models.SpaceEntry) string {
	return entry.UUID + "/" + entry.CreatorUUID
}

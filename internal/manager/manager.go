// Package manager implements the Stream Manager: the process-wide registry
// of running streams, conflict detection between them, and the persistence
// hand-off to the Settings Bridge.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/events"
	"github.com/coredevice/videonode/internal/logging"
	"github.com/coredevice/videonode/internal/pipeline"
	"github.com/coredevice/videonode/internal/stream"
)

// PersistFunc is called whenever the set of running streams changes, so the
// Settings Bridge can persist the new set. It receives a snapshot of every
// stream's Spec-shaped state; the Manager does not know the persisted
// format itself.
type PersistFunc func(streams []*stream.Stream)

// Manager owns every running Stream, keyed by id and by name.
type Manager struct {
	mu      sync.RWMutex
	streams map[string]*stream.Stream

	persist  PersistFunc
	eventBus *events.Bus
	logger   *slog.Logger
}

// New constructs an empty Manager. persist may be nil, disabling the
// persistence hand-off (useful in tests). eventBus may be nil, disabling
// event publication (also useful in tests); when set, it is handed to
// every Stream the Manager builds so sink-linked notifications reach
// subscribers.
func New(persist PersistFunc, eventBus *events.Bus) *Manager {
	return &Manager{
		streams:  make(map[string]*stream.Stream),
		persist:  persist,
		eventBus: eventBus,
		logger:   logging.GetLogger("manager"),
	}
}

// Add validates spec for conflicts against every currently running stream,
// builds it, and registers it. A name collision or an endpoint collision
// (same host and port already claimed by another stream) is rejected
// before the Pipeline Builder ever runs.
func (m *Manager) Add(spec stream.Spec) (*stream.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.streams {
		if existing.Name == spec.Name {
			return nil, core.New(core.CodeConflict, fmt.Sprintf("stream named %q already exists", spec.Name))
		}
		if conflicts(existing, spec) {
			return nil, core.New(core.CodeConflict, fmt.Sprintf("stream %q conflicts with an endpoint already in use by %q", spec.Name, existing.Name))
		}
	}

	s, err := stream.New(spec, m.eventBus)
	if err != nil {
		return nil, err
	}

	m.streams[s.ID] = s
	m.logger.Info("stream added", "stream_id", s.ID, "name", s.Name)
	m.persistLocked()

	return s, nil
}

// Get returns a Stream by id.
func (m *Manager) Get(id string) (*stream.Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.streams[id]
	if !ok {
		return nil, core.New(core.CodeNotFound, fmt.Sprintf("stream %s not found", id))
	}
	return s, nil
}

// GetByName returns a Stream by name.
func (m *Manager) GetByName(name string) (*stream.Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.streams {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, core.New(core.CodeNotFound, fmt.Sprintf("stream named %q not found", name))
}

// List returns a snapshot of every running stream.
func (m *Manager) List() []*stream.Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*stream.Stream, 0, len(m.streams))
	for _, s := range m.streams {
		out = append(out, s)
	}
	return out
}

// Remove tears a stream down. It is removed from the index first, so a
// concurrent List never observes a stream mid-teardown; only then does
// Teardown run its end-of-stream/poll/unlink-sinks sequence.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.streams[id]
	if !ok {
		m.mu.Unlock()
		return core.New(core.CodeNotFound, fmt.Sprintf("stream %s not found", id))
	}
	delete(m.streams, id)
	m.persistLocked()
	m.mu.Unlock()

	s.Teardown(ctx)
	m.logger.Info("stream removed", "stream_id", id, "name", s.Name)
	return nil
}

// RemoveByName resolves a stream by name and removes it, mirroring the
// original manager's name-indexed removal entry point.
func (m *Manager) RemoveByName(ctx context.Context, name string) error {
	s, err := m.GetByName(name)
	if err != nil {
		return err
	}
	return m.Remove(ctx, s.ID)
}

func (m *Manager) persistLocked() {
	if m.persist == nil {
		return
	}
	streams := make([]*stream.Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.persist(streams)
}

// conflicts reports whether spec would collide with an already-running
// stream: same source device claimed twice (a V4L2 device cannot be opened
// by two pipelines at once), or any endpoint host:port already claimed by
// one of existing's endpoints (two sinks cannot bind the same address).
func conflicts(existing *stream.Stream, spec stream.Spec) bool {
	if existing.Source.Kind == spec.Source.Kind && existing.Source.String() == spec.Source.String() {
		return true
	}
	return endpointsIntersect(existing.Endpoints, spec.Endpoints)
}

// endpointsIntersect reports whether a and b share a host:port.
func endpointsIntersect(a, b []pipeline.Endpoint) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Host == y.Host && x.Port == y.Port {
				return true
			}
		}
	}
	return false
}

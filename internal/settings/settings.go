// Package settings implements the Settings Bridge: the persisted JSON
// stream set, loaded at boot and rewritten atomically on every change, with
// a file watch so an out-of-band edit is picked up without a restart.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/coredevice/videonode/internal/config"
	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/logging"
	"github.com/coredevice/videonode/internal/pipeline"
	"github.com/coredevice/videonode/internal/sources"
	"github.com/coredevice/videonode/internal/stream"
)

// StoredEndpoint is the JSON form of a pipeline.Endpoint.
type StoredEndpoint struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
	Path   string `json:"path,omitempty"`
}

// StoredStream is the JSON form of one persisted stream definition.
type StoredStream struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	SourceKind sources.Kind           `json:"source_kind"`
	Source     string                 `json:"source"`
	Capture    sources.CaptureConfig  `json:"capture"`
	Endpoints  []StoredEndpoint       `json:"endpoints"`
}

// StreamSet is the top-level persisted document: a version tag plus the
// set of streams that should be running.
type StreamSet struct {
	Version int            `json:"version"`
	Streams []StoredStream `json:"streams"`
}

// Manager loads and stores a StreamSet at a fixed path, and can watch that
// path for out-of-band edits.
type Manager struct {
	path string

	mu     sync.Mutex
	logger *slog.Logger
	watch  *config.Watcher[*StreamSet]
}

// NewManager constructs a Manager bound to path. Store creates path's
// directory and the file itself when they are missing.
func NewManager(path string) *Manager {
	return &Manager{
		path:   path,
		logger: logging.GetLogger("settings"),
	}
}

// Load reads the persisted StreamSet. A missing file is not an error: it
// yields an empty set, matching first-boot behavior.
func (m *Manager) Load() (*StreamSet, error) {
	return loadFrom(m.path)
}

func loadFrom(path string) (*StreamSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &StreamSet{Version: 1, Streams: []StoredStream{}}, nil
		}
		return nil, core.Wrap(core.CodeState, "failed to read settings file", err)
	}

	var set StreamSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, core.Wrap(core.CodeState, "failed to parse settings file", err)
	}
	if set.Version == 0 {
		set.Version = 1
	}
	if set.Streams == nil {
		set.Streams = []StoredStream{}
	}
	return &set, nil
}

// Store persists set to path atomically: it writes to a temp file in the
// same directory, then renames over the destination, so a reader never
// observes a partially written document.
func (m *Manager) Store(set *StreamSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.Wrap(core.CodeState, "failed to create settings directory", err)
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return core.Wrap(core.CodeState, "failed to marshal settings", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".tmp-*")
	if err != nil {
		return core.Wrap(core.CodeState, "failed to create temp settings file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return core.Wrap(core.CodeState, "failed to write temp settings file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return core.Wrap(core.CodeState, "failed to close temp settings file", err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return core.Wrap(core.CodeState, "failed to rename settings file into place", err)
	}

	return nil
}

// Watch starts watching path for out-of-band edits, calling onChange with
// the freshly loaded StreamSet whenever the file is written by something
// other than Store (an operator editing it directly, a config-management
// tool). Stop the returned watcher when done.
func (m *Manager) Watch(onChange func(*StreamSet)) (*config.Watcher[*StreamSet], error) {
	w := config.NewConfigWatcher(m.path, loadFrom, m.logger)
	w.OnReload(onChange)
	if err := w.Start(); err != nil {
		return nil, core.Wrap(core.CodeState, "failed to start settings watcher", err)
	}
	m.watch = w
	return w, nil
}

// ToEndpoints converts a StoredStream's endpoints into pipeline.Endpoint
// values for handing to the Pipeline Builder.
func (s StoredStream) ToEndpoints() []pipeline.Endpoint {
	out := make([]pipeline.Endpoint, len(s.Endpoints))
	for i, e := range s.Endpoints {
		out[i] = pipeline.Endpoint{
			Scheme: pipeline.Scheme(e.Scheme),
			Host:   e.Host,
			Port:   e.Port,
			Path:   e.Path,
		}
	}
	return out
}

// FromEndpoints converts pipeline.Endpoint values back into their JSON
// form for persistence.
func FromEndpoints(endpoints []pipeline.Endpoint) []StoredEndpoint {
	out := make([]StoredEndpoint, len(endpoints))
	for i, e := range endpoints {
		out[i] = StoredEndpoint{
			Scheme: string(e.Scheme),
			Host:   e.Host,
			Port:   e.Port,
			Path:   e.Path,
		}
	}
	return out
}

// ToSpec builds a stream.Spec from a StoredStream, populating whichever
// sources.Ref variant field SourceKind names. This mirrors the API layer's
// flattened kind/value conversion, since both sides persist a source as a
// kind tag plus its canonical string form.
func (s StoredStream) ToSpec() stream.Spec {
	ref := sources.Ref{Kind: s.SourceKind, Name: s.Source}
	switch ref.Kind {
	case sources.KindLocal:
		ref.DevicePath = s.Source
	case sources.KindGst:
		ref.Pattern = s.Source
	case sources.KindFile:
		ref.FilePath = s.Source
	case sources.KindRedirect:
		ref.RedirectURL = s.Source
	}

	return stream.Spec{
		Name:      s.Name,
		Source:    ref,
		Capture:   s.Capture,
		Endpoints: s.ToEndpoints(),
	}
}

// FromStream converts a running *stream.Stream into its persisted form.
func FromStream(st *stream.Stream) StoredStream {
	return StoredStream{
		ID:         st.ID,
		Name:       st.Name,
		SourceKind: st.Source.Kind,
		Source:     st.Source.String(),
		Capture:    st.Capture,
		Endpoints:  FromEndpoints(st.Endpoints),
	}
}

// ValidateStreamSet is a light sanity check applied right after Load, so a
// hand-edited file with an obviously malformed entry fails fast rather
// than surfacing as a confusing Pipeline Builder error later.
func ValidateStreamSet(set *StreamSet) error {
	seen := make(map[string]bool, len(set.Streams))
	for _, s := range set.Streams {
		if s.Name == "" {
			return core.New(core.CodeValidation, "stored stream missing name")
		}
		if seen[s.Name] {
			return core.New(core.CodeValidation, fmt.Sprintf("duplicate stored stream name %q", s.Name))
		}
		seen[s.Name] = true
	}
	return nil
}

package sources

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/devices"
	"github.com/coredevice/videonode/internal/logging"
)

// syntheticPatterns is the fixed list of test-source patterns advertised for
// Gst sources, matching the common videotestsrc pattern names.
var syntheticPatterns = []string{"smpte", "ball", "snow", "black", "white"}

// Registry is the Source Registry: a stateless catalog backed by platform
// device enumeration (Local), a fixed list (Gst), a directory scan (File),
// and a set of transient entries fed by the Discovery Coordinator
// (Redirect).
type Registry struct {
	detector  devices.DeviceDetector
	fileDir   string
	logger    *slog.Logger
	mu        sync.RWMutex
	redirects map[string]Ref // keyed by RedirectURL
}

// NewRegistry builds a Registry. fileDir is the directory scanned for File
// sources; an empty fileDir disables the File variant.
func NewRegistry(fileDir string) *Registry {
	return &Registry{
		detector:  devices.NewDetector(),
		fileDir:   fileDir,
		logger:    logging.GetLogger("sources"),
		redirects: make(map[string]Ref),
	}
}

// ListAvailable aggregates local devices, synthetic patterns, file sources,
// and currently known redirect sources.
func (r *Registry) ListAvailable(_ context.Context) ([]Ref, error) {
	var refs []Ref

	localDevices, err := r.detector.FindDevices()
	if err != nil {
		r.logger.Warn("failed to enumerate local devices", "error", err)
	} else {
		for _, d := range localDevices {
			controls, cErr := r.detector.GetControls(d.DevicePath)
			if cErr != nil {
				r.logger.Debug("failed to query controls", "device", d.DevicePath, "error", cErr)
			}
			refs = append(refs, Ref{
				Kind:       KindLocal,
				Name:       d.DeviceName,
				DevicePath: d.DevicePath,
				Controls:   convertControls(controls),
			})
		}
	}

	for _, pattern := range syntheticPatterns {
		refs = append(refs, Ref{Kind: KindGst, Name: pattern, Pattern: pattern})
	}

	if r.fileDir != "" {
		fileRefs, err := r.scanFiles()
		if err != nil {
			r.logger.Warn("failed to scan file sources", "dir", r.fileDir, "error", err)
		} else {
			refs = append(refs, fileRefs...)
		}
	}

	r.mu.RLock()
	for _, ref := range r.redirects {
		refs = append(refs, ref)
	}
	r.mu.RUnlock()

	return refs, nil
}

// Get resolves a single source string (a device path, a pattern name, a
// file path, or a redirect URL) to its Ref.
func (r *Registry) Get(ctx context.Context, sourceString string) (Ref, error) {
	refs, err := r.ListAvailable(ctx)
	if err != nil {
		return Ref{}, err
	}
	for _, ref := range refs {
		if ref.String() == sourceString {
			return ref, nil
		}
	}
	return Ref{}, core.New(core.CodeNotFound, fmt.Sprintf("source not found: %s", sourceString))
}

// SetControl applies value to a named control on a Local source. Other
// variants fail with ValidationError (UnsupportedControl).
func (r *Registry) SetControl(_ context.Context, devicePath, id string, value int) error {
	var controlID uint32
	if _, err := fmt.Sscanf(id, "%d", &controlID); err != nil {
		return core.New(core.CodeValidation, fmt.Sprintf("invalid control id: %s", id))
	}
	if err := r.detector.SetControl(devicePath, controlID, int32(value)); err != nil {
		return core.Wrap(core.CodeValidation, "failed to set control", err)
	}
	return nil
}

// AddRedirect registers a transient Redirect SourceRef, called by the
// Discovery Coordinator for each ONVIF device it resolves a stream URI for.
func (r *Registry) AddRedirect(ref Ref) {
	if ref.Kind != KindRedirect {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects[ref.RedirectURL] = ref
}

// RemoveRedirect drops a previously registered Redirect SourceRef.
func (r *Registry) RemoveRedirect(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.redirects, url)
}

func (r *Registry) scanFiles() ([]Ref, error) {
	entries, err := os.ReadDir(r.fileDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var refs []Ref
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			continue
		}
		path := filepath.Join(r.fileDir, entry.Name())
		refs = append(refs, Ref{
			Kind:     KindFile,
			Name:     entry.Name(),
			FilePath: path,
		})
	}
	return refs, nil
}

func convertControls(cs []devices.ControlInfo) []ControlState {
	states := make([]ControlState, len(cs))
	for i, c := range cs {
		var kind ControlKind
		switch c.Type {
		case devices.ControlTypeBoolean:
			kind = ControlBool
		case devices.ControlTypeMenu:
			kind = ControlMenu
		default:
			kind = ControlSlider
		}
		options := make([]ControlOption, len(c.Menu))
		for j, m := range c.Menu {
			options[j] = ControlOption{Value: int(m.Index), Name: m.Name}
		}
		states[i] = ControlState{
			ID:      fmt.Sprintf("%d", c.ID),
			Name:    c.Name,
			Kind:    kind,
			Value:   int(c.Value),
			Min:     int(c.Min),
			Max:     int(c.Max),
			Step:    int(c.Step),
			Options: options,
		}
	}
	return states
}

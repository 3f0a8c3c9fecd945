// Package stream implements the Stream: a single running pipeline plus the
// set of sinks currently multiplexed off its tees.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/events"
	"github.com/coredevice/videonode/internal/logging"
	"github.com/coredevice/videonode/internal/pipeline"
	"github.com/coredevice/videonode/internal/sink"
	"github.com/coredevice/videonode/internal/sources"
)

// Spec is the input for creating a Stream: a name plus everything the
// Pipeline Builder needs.
type Spec struct {
	Name      string
	Source    sources.Ref
	Capture   sources.CaptureConfig
	Endpoints []pipeline.Endpoint
}

// Stream owns one pipeline build and the sinks attached to it. A Stream's
// pipeline is never rebuilt in place; adding an endpoint that changes the
// rendered graph (a new UDP client, for instance) replaces Pipeline and
// leaves existing sinks linked to their own tee names.
type Stream struct {
	ID        string
	Name      string
	Source    sources.Ref
	Capture   sources.CaptureConfig
	Endpoints []pipeline.Endpoint

	mu       sync.RWMutex
	pipeline *pipeline.Result
	state    core.PipelineState
	sinks    map[string]sink.Sink

	eventBus *events.Bus
	logger   *slog.Logger
}

// New validates spec against the Pipeline Builder and returns a Stream in
// PipelineStateReady. The pipeline is not yet "running" in any process
// sense: that transition is driven by whatever owns the rendered graph
// (a spawned gst-launch process, or an in-process go2rtc producer).
// eventBus may be nil, disabling sink-linked notifications (useful in
// tests).
func New(spec Spec, eventBus *events.Bus) (*Stream, error) {
	id := core.NewID()

	result, err := pipeline.Build(pipeline.Spec{
		PipelineID: id,
		Source:     spec.Source,
		Capture:    spec.Capture,
		Endpoints:  spec.Endpoints,
	})
	if err != nil {
		return nil, err
	}

	return &Stream{
		ID:        id,
		Name:      spec.Name,
		Source:    spec.Source,
		Capture:   spec.Capture,
		Endpoints: spec.Endpoints,
		pipeline:  result,
		state:     core.PipelineReady,
		sinks:     make(map[string]sink.Sink),
		eventBus:  eventBus,
		logger:    logging.GetLogger("stream").With("stream_id", id, "name", spec.Name),
	}, nil
}

// Pipeline returns the most recently built pipeline graph.
func (s *Stream) Pipeline() *pipeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline
}

// State returns the current PipelineState.
func (s *Stream) State() core.PipelineState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState transitions the Stream's recorded pipeline state, called by
// whatever is supervising the running graph (a bus-watch goroutine, or a
// process exit handler).
func (s *Stream) SetState(state core.PipelineState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// AddSink attaches a new Sink, rejecting a duplicate id. A UDP sink has no
// process of its own to spawn: its client is folded into the pipeline's
// multiudpsink clients list by re-rendering the graph, per the Stream
// doc comment's "adding an endpoint... replaces Pipeline." An RTSP sink
// already registered with MediaMTX at an earlier pipeline revision keeps
// running its frozen gst-launch command until the path is next
// re-registered; this sink does not retroactively push the new client
// into it.
func (s *Stream) AddSink(sk sink.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sinks[sk.ID()]; exists {
		return core.New(core.CodeConflict, fmt.Sprintf("sink %s already attached", sk.ID()))
	}

	if udp, ok := sk.(*sink.UDPSink); ok {
		endpoint := pipeline.Endpoint{Scheme: pipeline.SchemeUDP, Host: udp.Host, Port: udp.Port}
		if err := s.rebuildPipelineLocked(append(append([]pipeline.Endpoint{}, s.Endpoints...), endpoint)); err != nil {
			return err
		}
	}

	s.sinks[sk.ID()] = sk
	s.logger.Debug("sink attached", "sink_id", sk.ID(), "kind", sk.Kind())
	if s.eventBus != nil {
		s.eventBus.Publish(events.SinkLinkedEvent{
			StreamID:  s.ID,
			SinkID:    sk.ID(),
			Kind:      string(sk.Kind()),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return nil
}

// RemoveSink unlinks and detaches a Sink by id.
func (s *Stream) RemoveSink(ctx context.Context, id string) error {
	s.mu.Lock()
	sk, exists := s.sinks[id]
	if exists {
		delete(s.sinks, id)
	}
	s.mu.Unlock()

	if !exists {
		return core.New(core.CodeNotFound, fmt.Sprintf("sink %s not attached", id))
	}
	if err := sk.Unlink(ctx); err != nil {
		return core.Wrap(core.CodeLink, fmt.Sprintf("failed to unlink sink %s", id), err)
	}
	return nil
}

// rebuildPipelineLocked re-renders the pipeline graph against an updated
// endpoint set and swaps it in. Callers hold s.mu.
func (s *Stream) rebuildPipelineLocked(endpoints []pipeline.Endpoint) error {
	result, err := pipeline.Build(pipeline.Spec{
		PipelineID: s.ID,
		Source:     s.Source,
		Capture:    s.Capture,
		Endpoints:  endpoints,
	})
	if err != nil {
		return err
	}
	s.pipeline = result
	s.Endpoints = endpoints
	return nil
}

// Sinks returns a snapshot of the currently attached sinks.
func (s *Stream) Sinks() []sink.Sink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sink.Sink, 0, len(s.sinks))
	for _, sk := range s.sinks {
		out = append(out, sk)
	}
	return out
}

// Teardown sets the recorded pipeline state to Null, polls until the state
// reads Null (capped at 5 seconds), then unlinks every sink, logging rather
// than failing on an individual sink's unlink error. The caller must have already removed the Stream from the
// Manager's index before calling Teardown, so concurrent List calls never
// observe a mid-teardown stream.
func (s *Stream) Teardown(ctx context.Context) {
	s.SetState(core.PipelineNull)

	deadline := time.Now().Add(5 * time.Second)
	for s.State() != core.PipelineNull && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}

	for _, sk := range s.Sinks() {
		if err := sk.Unlink(ctx); err != nil {
			s.logger.Warn("failed unlinking sink during teardown", "sink_id", sk.ID(), "error", err)
		}
	}
}

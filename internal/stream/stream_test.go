package stream

import (
	"context"
	"testing"

	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/pipeline"
	"github.com/coredevice/videonode/internal/sink"
	"github.com/coredevice/videonode/internal/sources"
)

func testSpec() Spec {
	return Spec{
		Name:    "front-door",
		Source:  sources.Ref{Kind: sources.KindLocal, DevicePath: "/dev/video0"},
		Capture: sources.CaptureConfig{Encode: sources.EncodeH264, Width: 1080, Height: 720, FrameInterval: sources.FrameInterval{Numerator: 1, Denominator: 30}},
		Endpoints: []pipeline.Endpoint{
			{Scheme: pipeline.SchemeUDP, Host: "192.168.0.1", Port: 42},
		},
	}
}

func TestNewBuildsPipeline(t *testing.T) {
	s, err := New(testSpec(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Pipeline() == nil {
		t.Fatal("expected a built pipeline")
	}
	if s.State() != core.PipelineReady {
		t.Errorf("State() = %v, want PipelineReady", s.State())
	}
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	spec := testSpec()
	spec.Capture.Width = 0
	if _, err := New(spec, nil);!core.Is(err, core.CodeValidation) {
		t.Fatalf("expected CodeValidation, got %v", err)
	}
}

func TestAddSinkRejectsDuplicateID(t *testing.T) {
	s, err := New(testSpec(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := sink.NewUDPSink("sink-1", "10.0.0.1", 5000)
	if err := s.AddSink(a); err != nil {
		t.Fatalf("AddSink: %v", err)
	}
	b := sink.NewUDPSink("sink-1", "10.0.0.2", 5001)
	if err := s.AddSink(b); !core.Is(err, core.CodeConflict) {
		t.Fatalf("expected CodeConflict for duplicate sink id, got %v", err)
	}
}

func TestRemoveSinkUnknownID(t *testing.T) {
	s, err := New(testSpec(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.RemoveSink(context.Background(), "missing"); !core.Is(err, core.CodeNotFound) {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

func TestTeardownUnlinksAllSinks(t *testing.T) {
	s, err := New(testSpec(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.AddSink(sink.NewUDPSink("sink-1", "10.0.0.1", 5000)); err != nil {
		t.Fatalf("AddSink: %v", err)
	}
	s.Teardown(context.Background())
	if s.State() != core.PipelineNull {
		t.Errorf("State() after Teardown = %v, want PipelineNull", s.State())
	}
}

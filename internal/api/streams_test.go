package api

import (
	"testing"

	"github.com/coredevice/videonode/internal/api/models"
	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/manager"
	"github.com/coredevice/videonode/internal/pipeline"
	"github.com/coredevice/videonode/internal/sink"
	"github.com/coredevice/videonode/internal/sources"
	"github.com/coredevice/videonode/internal/stream"
)

func testStreamSpec(name string) stream.Spec {
	return stream.Spec{
		Name:   name,
		Source: sources.Ref{Kind: sources.KindGst, Name: "bars", Pattern: "smpte"},
		Capture: sources.CaptureConfig{
			Encode: sources.EncodeH264,
			Width:  1920,
			Height: 1080,
			FrameInterval: sources.FrameInterval{
				Numerator:   1,
				Denominator: 30,
			},
		},
		Endpoints: []pipeline.Endpoint{
			{Scheme: pipeline.SchemeUDP, Host: "127.0.0.1", Port: 5000},
		},
	}
}

func TestApiToStreamSpec_BuildsSourceAndCapture(t *testing.T) {
	body := models.StreamCreateRequestData{
		Name:   "front-door",
		Source: models.SourceData{Kind: "local", Value: "/dev/video0"},
		Capture: models.StreamCaptureData{
			Width: 1280, Height: 720, FrameRateNum: 1, FrameRateDen: 30, Encode: "h265",
		},
		Endpoints: []models.EndpointData{
			{Scheme: "rtsp", Path: "/live/front-door"},
		},
	}

	spec := apiToStreamSpec(body)

	if spec.Name != "front-door" {
		t.Errorf("expected name 'front-door', got %q", spec.Name)
	}
	if spec.Source.Kind != sources.KindLocal || spec.Source.DevicePath != "/dev/video0" {
		t.Errorf("expected local source /dev/video0, got %+v", spec.Source)
	}
	if spec.Capture.Encode != sources.EncodeH265 {
		t.Errorf("expected h265 encode, got %q", spec.Capture.Encode)
	}
	if spec.Capture.Width != 1280 || spec.Capture.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", spec.Capture.Width, spec.Capture.Height)
	}
	if len(spec.Endpoints) != 1 || spec.Endpoints[0].Scheme != pipeline.SchemeRTSP {
		t.Errorf("expected one rtsp endpoint, got %+v", spec.Endpoints)
	}
}

func TestApiToSourceRef_PopulatesVariantField(t *testing.T) {
	cases := []struct {
		kind string
		want func(sources.Ref) bool
	}{
		{"local", func(r sources.Ref) bool { return r.DevicePath == "/dev/video1" }},
		{"gst", func(r sources.Ref) bool { return r.Pattern == "/dev/video1" }},
		{"file", func(r sources.Ref) bool { return r.FilePath == "/dev/video1" }},
		{"redirect", func(r sources.Ref) bool { return r.RedirectURL == "/dev/video1" }},
	}
	for _, tc := range cases {
		ref := apiToSourceRef(models.SourceData{Kind: tc.kind, Value: "/dev/video1"})
		if ref.Kind != sources.Kind(tc.kind) {
			t.Errorf("%s: expected kind %s, got %s", tc.kind, tc.kind, ref.Kind)
		}
		if !tc.want(ref) {
			t.Errorf("%s: variant field not populated, got %+v", tc.kind, ref)
		}
	}
}

func TestDomainToAPIStream_ReflectsRunningStream(t *testing.T) {
	m := manager.New(nil, nil)
	st, err := m.Add(testStreamSpec("cam1"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	apiData := domainToAPIStream(st)

	if apiData.ID != st.ID {
		t.Errorf("expected id %s, got %s", st.ID, apiData.ID)
	}
	if apiData.Name != "cam1" {
		t.Errorf("expected name 'cam1', got %q", apiData.Name)
	}
	if apiData.Source.Kind != "gst" || apiData.Source.Value != "smpte" {
		t.Errorf("expected gst source 'smpte', got %+v", apiData.Source)
	}
	if apiData.State != "ready" {
		t.Errorf("expected state 'ready', got %q", apiData.State)
	}
	if apiData.Description == "" {
		t.Error("expected a rendered pipeline description")
	}
	if len(apiData.Sinks) != 0 {
		t.Errorf("expected no sinks on a freshly built stream, got %d", len(apiData.Sinks))
	}
}

func TestDomainToAPIStream_IncludesAttachedSinks(t *testing.T) {
	m := manager.New(nil, nil)
	st, err := m.Add(testStreamSpec("cam2"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	sk := sink.NewUDPSink(core.NewID(), "127.0.0.1", 5001)
	if err := st.AddSink(sk); err != nil {
		t.Fatalf("AddSink failed: %v", err)
	}

	apiData := domainToAPIStream(st)
	if len(apiData.Sinks) != 1 || apiData.Sinks[0].Kind != "udp" {
		t.Errorf("expected one udp sink, got %+v", apiData.Sinks)
	}
}

func TestMapDomainError_MapsKnownCodes(t *testing.T) {
	cases := []struct {
		code core.Code
	}{
		{core.CodeNotFound},
		{core.CodeConflict},
		{core.CodeValidation},
		{core.CodeBuild},
	}
	for _, tc := range cases {
		err := mapDomainError(core.New(tc.code, "boom"))
		if err == nil {
			t.Errorf("%s: expected a non-nil huma error", tc.code)
		}
	}
}

func TestMapDomainError_NonCoreErrorIsInternal(t *testing.T) {
	err := mapDomainError(errPlain("unexpected"))
	if err == nil {
		t.Fatal("expected a non-nil huma error")
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

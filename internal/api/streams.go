package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/coredevice/videonode/internal/api/models"
	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/events"
	"github.com/coredevice/videonode/internal/pipeline"
	"github.com/coredevice/videonode/internal/sink"
	"github.com/coredevice/videonode/internal/sources"
	"github.com/coredevice/videonode/internal/stream"
)

// registerStreamRoutes registers all stream-related endpoints.
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams",
		Summary:     "List Streams",
		Description: "List every stream currently held by the manager",
		Tags:        []string{"streams"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StreamListResponse, error) {
		all := s.manager.List()
		apiStreams := make([]models.StreamData, len(all))
		for i, st := range all {
			apiStreams[i] = domainToAPIStream(st)
		}
		return &models.StreamListResponse{
			Body: models.StreamListData{Streams: apiStreams, Count: len(apiStreams)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "create-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams",
		Summary:     "Create Stream",
		Description: "Build a pipeline from a source and endpoint set and register it",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.StreamCreateRequest) (*models.StreamResponse, error) {
		spec := apiToStreamSpec(input.Body)

		st, err := s.manager.Add(spec)
		if err != nil {
			return nil, mapDomainError(err)
		}

		apiStream := domainToAPIStream(st)
		if s.eventBus != nil {
			s.eventBus.Publish(events.StreamCreatedEvent{
				Stream:    apiStream,
				Action:    "created",
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
		return &models.StreamResponse{Body: apiStream}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-stream",
		Method:      http.MethodDelete,
		Path:        "/api/streams/{stream_id}",
		Summary:     "Delete Stream",
		Description: "Tear down a stream and unlink all of its sinks",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		StreamID string `path:"stream_id" example:"5e1f2a3b" doc:"Stream identifier"`
	}) (*struct{}, error) {
		if err := s.manager.Remove(ctx, input.StreamID); err != nil {
			return nil, mapDomainError(err)
		}
		if s.eventBus != nil {
			s.eventBus.Publish(events.StreamDeletedEvent{
				StreamID:  input.StreamID,
				Action:    "deleted",
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/api/streams/{stream_id}",
		Summary:     "Get Stream",
		Description: "Get details of a specific stream",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		StreamID string `path:"stream_id" example:"5e1f2a3b" doc:"Stream identifier"`
	}) (*models.StreamResponse, error) {
		st, err := s.manager.Get(input.StreamID)
		if err != nil {
			return nil, mapDomainError(err)
		}
		return &models.StreamResponse{Body: domainToAPIStream(st)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "add-sink",
		Method:      http.MethodPost,
		Path:        "/api/streams/{stream_id}/sinks",
		Summary:     "Add Sink",
		Description: "Attach a new output sink to a running stream",
		Tags:        []string{"streams"},
		Errors:      []int{400, 401, 404, 409, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		StreamID string `path:"stream_id" example:"5e1f2a3b" doc:"Stream identifier"`
		Body     models.SinkCreateRequestData
	}) (*models.SinkResponse, error) {
		st, err := s.manager.Get(input.StreamID)
		if err != nil {
			return nil, mapDomainError(err)
		}

		newSink, err := s.buildSink(ctx, st, input.Body)
		if err != nil {
			return nil, mapDomainError(err)
		}
		if err := st.AddSink(newSink); err != nil {
			return nil, mapDomainError(err)
		}

		return &models.SinkResponse{Body: models.SinkData{ID: newSink.ID(), Kind: string(newSink.Kind())}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "remove-sink",
		Method:      http.MethodDelete,
		Path:        "/api/streams/{stream_id}/sinks/{sink_id}",
		Summary:     "Remove Sink",
		Description: "Unlink and remove a sink from a stream",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct {
		StreamID string `path:"stream_id" example:"5e1f2a3b" doc:"Stream identifier"`
		SinkID   string `path:"sink_id" example:"a1b2c3d4" doc:"Sink identifier"`
	}) (*struct{}, error) {
		st, err := s.manager.Get(input.StreamID)
		if err != nil {
			return nil, mapDomainError(err)
		}
		if err := st.RemoveSink(ctx, input.SinkID); err != nil {
			return nil, mapDomainError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sources",
		Method:      http.MethodGet,
		Path:        "/api/sources",
		Summary:     "List Sources",
		Description: "List available capture sources: local devices, test patterns, files, and discovered redirects",
		Tags:        []string{"sources"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.SourceListResponse, error) {
		refs, err := s.sources.ListAvailable(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list sources", err)
		}
		out := make([]models.SourceData, len(refs))
		for i, ref := range refs {
			out[i] = models.SourceData{Kind: string(ref.Kind), Value: ref.String()}
		}
		return &models.SourceListResponse{Body: models.SourceListData{Sources: out, Count: len(out)}}, nil
	})
}

// buildSink constructs a concrete sink.Sink from a SinkCreateRequestData,
// linking it to the stream's running pipeline as appropriate to its kind.
// WebRTC sinks are not built here: they come into existence through the
// signalling Hub's offer/answer exchange, which has an actual peer
// connection to wire as a go2rtc consumer.
func (s *Server) buildSink(_ context.Context, st *stream.Stream, body models.SinkCreateRequestData) (sink.Sink, error) {
	switch body.Kind {
	case "udp":
		return sink.NewUDPSink(core.NewID(), body.UDP.Host, body.UDP.Port), nil
	case "rtsp":
		p := st.Pipeline()
		return sink.NewRTSPSink(core.NewID(), st.ID, s.mediaMTX, p.Description)
	case "webrtc":
		return nil, core.New(core.CodeValidation, "webrtc sinks are created via the /ws signalling endpoint")
	default:
		return nil, core.New(core.CodeValidation, "unknown sink kind")
	}
}

// apiToStreamSpec converts an API create request into a stream.Spec.
func apiToStreamSpec(body models.StreamCreateRequestData) stream.Spec {
	endpoints := make([]pipeline.Endpoint, len(body.Endpoints))
	for i, e := range body.Endpoints {
		endpoints[i] = pipeline.Endpoint{
			Scheme: pipeline.Scheme(e.Scheme),
			Host:   e.Host,
			Port:   e.Port,
			Path:   e.Path,
		}
	}

	encode := sources.EncodeH264
	if body.Capture.Encode == "h265" {
		encode = sources.EncodeH265
	}

	return stream.Spec{
		Name:   body.Name,
		Source: apiToSourceRef(body.Source),
		Capture: sources.CaptureConfig{
			Encode: encode,
			Width:  uint32(body.Capture.Width),
			Height: uint32(body.Capture.Height),
			FrameInterval: sources.FrameInterval{
				Numerator:   uint32(body.Capture.FrameRateNum),
				Denominator: uint32(body.Capture.FrameRateDen),
			},
		},
		Endpoints: endpoints,
	}
}

// apiToSourceRef builds a sources.Ref from the API's flattened kind/value
// pair, populating whichever variant field the kind names.
func apiToSourceRef(s models.SourceData) sources.Ref {
	ref := sources.Ref{Kind: sources.Kind(s.Kind), Name: s.Value}
	switch ref.Kind {
	case sources.KindLocal:
		ref.DevicePath = s.Value
	case sources.KindGst:
		ref.Pattern = s.Value
	case sources.KindFile:
		ref.FilePath = s.Value
	case sources.KindRedirect:
		ref.RedirectURL = s.Value
	}
	return ref
}

// domainToAPIStream converts a *stream.Stream to its API representation.
func domainToAPIStream(st *stream.Stream) models.StreamData {
	sinks := st.Sinks()
	apiSinks := make([]models.SinkData, len(sinks))
	for i, sk := range sinks {
		apiSinks[i] = models.SinkData{ID: sk.ID(), Kind: string(sk.Kind())}
	}

	p := st.Pipeline()
	return models.StreamData{
		ID:          st.ID,
		Name:        st.Name,
		Source:      models.SourceData{Kind: string(st.Source.Kind), Value: st.Source.String()},
		State:       st.State().String(),
		Description: p.Description,
		Sinks:       apiSinks,
	}
}

// mapDomainError maps internal/core tagged errors to HTTP errors.
func mapDomainError(err error) error {
	var ce *core.Error
	if e, ok := err.(*core.Error); ok {
		ce = e
	}
	if ce == nil {
		return huma.Error500InternalServerError("internal server error", err)
	}
	switch ce.Code {
	case core.CodeNotFound:
		return huma.Error404NotFound(ce.Message, err)
	case core.CodeConflict:
		return huma.Error409Conflict(ce.Message, err)
	case core.CodeValidation, core.CodeBuild:
		return huma.Error400BadRequest(ce.Message, err)
	case core.CodeState:
		return huma.Error409Conflict(ce.Message, err)
	default:
		return huma.Error500InternalServerError(ce.Message, err)
	}
}

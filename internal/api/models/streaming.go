package models

// EndpointData describes one sink destination of a stream, mirroring
// internal/pipeline.Endpoint.
type EndpointData struct {
	Scheme string `json:"scheme" enum:"udp,udp265,rtsp,webrtc" example:"udp" doc:"Output transport"`
	Host   string `json:"host,omitempty" example:"192.168.0.1" doc:"Destination host (udp/udp265)"`
	Port   int    `json:"port,omitempty" example:"5000" doc:"Destination port (udp/udp265)"`
	Path   string `json:"path,omitempty" example:"/live/cam1" doc:"RTSP path (rtsp)"`
}

// StreamCaptureData describes the requested capture geometry and framerate.
type StreamCaptureData struct {
	Width        int    `json:"width" example:"1920" doc:"Frame width, must be even"`
	Height       int    `json:"height" example:"1080" doc:"Frame height, must be even"`
	FrameRateNum int    `json:"framerate_num" example:"1" doc:"Frame interval numerator (seconds per frame = framerate_num/framerate_den)"`
	FrameRateDen int    `json:"framerate_den" example:"30" doc:"Frame interval denominator (the framerate is framerate_den/framerate_num)"`
	Encode       string `json:"encode" enum:"h264,h265" example:"h264" doc:"Video encode"`
}

// SourceData identifies the capture source: a local device, a synthetic
// test pattern, or a file.
type SourceData struct {
	Kind  string `json:"kind" enum:"local,gst,file,redirect" example:"local" doc:"Source kind"`
	Value string `json:"value" example:"/dev/video0" doc:"Device path, pattern name, file path, or redirect URL"`
}

// StreamCreateRequestData contains parameters for creating a new stream.
type StreamCreateRequestData struct {
	Name      string            `json:"name" minLength:"1" maxLength:"50" pattern:"^[a-zA-Z0-9_-]+$" example:"front-door" doc:"Stream name, must be unique"`
	Source    SourceData        `json:"source" doc:"Capture source"`
	Capture   StreamCaptureData `json:"capture" doc:"Capture geometry and encode"`
	Endpoints []EndpointData    `json:"endpoints" doc:"Sink endpoints, all sharing one scheme"`
}

// StreamCreateRequest wraps StreamCreateRequestData for API requests.
type StreamCreateRequest struct {
	Body StreamCreateRequestData
}

// SinkData describes a sink currently attached to a stream.
type SinkData struct {
	ID   string `json:"id" example:"a1b2c3d4" doc:"Sink identifier"`
	Kind string `json:"kind" enum:"udp,rtsp,webrtc" example:"udp" doc:"Sink transport kind"`
}

// StreamData represents a managed stream and its runtime state.
type StreamData struct {
	ID          string     `json:"id" example:"5e1f2a3b" doc:"Stream identifier"`
	Name        string     `json:"name" example:"front-door" doc:"Stream name"`
	Source      SourceData `json:"source" doc:"Capture source"`
	State       string     `json:"state" example:"playing" doc:"Pipeline state"`
	Description string     `json:"description" doc:"Rendered pipeline description"`
	Sinks       []SinkData `json:"sinks" doc:"Currently attached sinks"`
}

// StreamListData contains a list of all managed streams.
type StreamListData struct {
	Streams []StreamData `json:"streams" doc:"List of managed streams"`
	Count   int          `json:"count" example:"2" doc:"Number of managed streams"`
}

// StreamListResponse wraps StreamListData for API responses.
type StreamListResponse struct {
	Body StreamListData
}

// StreamResponse wraps StreamData for API responses.
type StreamResponse struct {
	Body StreamData
}

// SinkCreateRequestData adds a new sink to an existing stream.
type SinkCreateRequestData struct {
	Kind string       `json:"kind" enum:"udp,rtsp,webrtc" example:"udp" doc:"Sink transport kind"`
	UDP  EndpointData `json:"udp,omitempty" doc:"UDP destination (kind=udp)"`
	RTSP EndpointData `json:"rtsp,omitempty" doc:"RTSP path (kind=rtsp)"`
}

// SinkCreateRequest wraps SinkCreateRequestData for API requests.
type SinkCreateRequest struct {
	Body SinkCreateRequestData
}

// SinkResponse wraps SinkData for API responses.
type SinkResponse struct {
	Body SinkData
}

// SourceListData contains the current Source Registry catalog.
type SourceListData struct {
	Sources []SourceData `json:"sources" doc:"Available capture sources"`
	Count   int          `json:"count" example:"3" doc:"Number of available sources"`
}

// SourceListResponse wraps SourceListData for API responses.
type SourceListResponse struct {
	Body SourceListData
}

// Package pipeline implements the Pipeline Builder: given a source, an
// encode configuration, and a set of endpoints, it validates the
// combination and renders the pipeline description graph.
package pipeline

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/sources"
)

// Tee name prefixes; the full element name is `{prefix}-{pipeline_id}` so a
// sink can later locate the correct tee by name.
const (
	VideoTeePrefix = "video-tee"
	RTPTeePrefix   = "rtp-tee"
)

// Scheme is the endpoint URL scheme, which determines the sink kind.
type Scheme string

const (
	SchemeUDP    Scheme = "udp"
	SchemeUDP265 Scheme = "udp265"
	SchemeRTSP   Scheme = "rtsp"
	SchemeWebRTC Scheme = "webrtc"
)

// Endpoint is one parsed destination from the stream's endpoint list.
type Endpoint struct {
	Scheme Scheme
	Host   string
	Port   int
	Path   string
}

// ParseEndpoint parses a raw endpoint URL into its scheme-specific fields.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, core.Wrap(core.CodeValidation, fmt.Sprintf("invalid endpoint %q", raw), err)
	}
	ep := Endpoint{Scheme: Scheme(u.Scheme), Host: u.Hostname(), Path: u.Path}
	if u.Port() != "" {
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return Endpoint{}, core.New(core.CodeValidation, fmt.Sprintf("invalid port in endpoint %q", raw))
		}
		ep.Port = port
	}
	return ep, nil
}

// Spec is the input to Build: a (source, encode, endpoints) triple.
type Spec struct {
	PipelineID string
	Source     sources.Ref
	Capture    sources.CaptureConfig
	Endpoints  []Endpoint
}

// Result is the rendered pipeline graph.
type Result struct {
	Description  string
	VideoTeeName string
	RTPTeeName   string
}

// Build validates spec and renders the pipeline description string. It
// fails before constructing anything if any validation rule from the
// component design is violated.
func Build(spec Spec) (*Result, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}

	videoTee := fmt.Sprintf("%s-%s", VideoTeePrefix, spec.PipelineID)
	rtpTee := fmt.Sprintf("%s-%s", RTPTeePrefix, spec.PipelineID)

	scheme := spec.Endpoints[0].Scheme
	videoFormat, err := videoFormatFragment(spec)
	if err != nil {
		return nil, err
	}

	payload := payloadFragment(spec.Capture.Encode)
	sink, err := sinkFragment(scheme, spec.Endpoints)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(videoFormat)
	fmt.Fprintf(&b, " ! tee name=%s ! queue", videoTee)
	b.WriteString(payload)
	fmt.Fprintf(&b, " ! tee name=%s ! queue", rtpTee)
	b.WriteString(sink)

	return &Result{
		Description:  b.String(),
		VideoTeeName: videoTee,
		RTPTeeName:   rtpTee,
	}, nil
}

func validate(spec Spec) error {
	if len(spec.Endpoints) == 0 {
		return core.New(core.CodeValidation, "endpoints must not be empty")
	}

	scheme := spec.Endpoints[0].Scheme
	for _, ep := range spec.Endpoints {
		if ep.Scheme != scheme {
			return core.New(core.CodeValidation, "all endpoints must share one scheme")
		}
	}

	switch scheme {
	case SchemeRTSP:
		if len(spec.Endpoints) > 1 {
			return core.New(core.CodeValidation, "RTSP streams must have exactly one endpoint")
		}
	case SchemeUDP:
		if spec.Capture.Encode != sources.EncodeH264 {
			return core.New(core.CodeValidation, "udp endpoints require H264 encode (use udp265 for H265)")
		}
		if err := requireHostPort(spec.Endpoints); err != nil {
			return err
		}
	case SchemeUDP265:
		if spec.Capture.Encode != sources.EncodeH265 {
			return core.New(core.CodeValidation, "udp265 endpoints require H265 encode")
		}
		if err := requireHostPort(spec.Endpoints); err != nil {
			return err
		}
	case SchemeWebRTC:
		if spec.Capture.Encode != sources.EncodeH264 {
			return core.New(core.CodeValidation, "webrtc endpoints require H264 encode")
		}
	default:
		return core.New(core.CodeValidation, fmt.Sprintf("unsupported endpoint scheme %q", scheme))
	}

	if spec.Capture.Encode == sources.EncodeUnknown {
		return core.New(core.CodeValidation, fmt.Sprintf("unknown encode %q is not accepted", spec.Capture.UnknownEncode))
	}

	if spec.Capture.Width == 0 || spec.Capture.Width%2 != 0 {
		return core.New(core.CodeValidation, "width must be a nonzero even number")
	}
	if spec.Capture.Height == 0 || spec.Capture.Height%2 != 0 {
		return core.New(core.CodeValidation, "height must be a nonzero even number")
	}

	return nil
}

func requireHostPort(endpoints []Endpoint) error {
	for _, ep := range endpoints {
		if ep.Host == "" || ep.Port == 0 {
			return core.New(core.CodeValidation, "udp endpoints require host and port")
		}
	}
	return nil
}

func videoFormatFragment(spec Spec) (string, error) {
	width, height := spec.Capture.Width, spec.Capture.Height
	den, num := spec.Capture.FrameInterval.Denominator, spec.Capture.FrameInterval.Numerator

	switch spec.Source.Kind {
	case sources.KindLocal:
		return fmt.Sprintf(
			"v4l2src device=%s ! video/x-h264,width=%d,height=%d,framerate=%d/%d",
			spec.Source.DevicePath, width, height, den, num,
		), nil
	case sources.KindGst:
		return fmt.Sprintf(
			"videotestsrc pattern=%s ! video/x-raw,width=%d,height=%d,framerate=%d/%d ! videoconvert ! x264enc bitrate=5000 ! video/x-h264,profile=baseline",
			spec.Source.Pattern, width, height, den, num,
		), nil
	case sources.KindFile:
		return fmt.Sprintf(
			"filesrc location=%s ! decodebin ! imagefreeze ! videoscale ! video/x-raw,width=%d,height=%d ! videoconvert ! x264enc bitrate=5000 ! video/x-h264,profile=baseline",
			spec.Source.FilePath, width, height,
		), nil
	default:
		return "", core.New(core.CodeBuild, fmt.Sprintf("no pipeline template for source kind %q", spec.Source.Kind))
	}
}

func payloadFragment(encode sources.Encode) string {
	switch encode {
	case sources.EncodeH265:
		return " ! h265parse ! queue ! rtph265pay config-interval=10 pt=96"
	default:
		return " ! h264parse ! queue ! rtph264pay config-interval=10 pt=96"
	}
}

func sinkFragment(scheme Scheme, endpoints []Endpoint) (string, error) {
	switch scheme {
	case SchemeUDP, SchemeUDP265:
		clients := make([]string, len(endpoints))
		for i, ep := range endpoints {
			clients[i] = fmt.Sprintf("%s:%d", ep.Host, ep.Port)
		}
		return fmt.Sprintf(" ! multiudpsink clients=%s", strings.Join(clients, ",")), nil
	case SchemeRTSP:
		return fmt.Sprintf(" ! rtspclientsink location=rtsp://127.0.0.1:8554%s", endpoints[0].Path), nil
	case SchemeWebRTC:
		return " ! appsink name=webrtc-appsink", nil
	default:
		return "", core.New(core.CodeBuild, fmt.Sprintf("unsupported scheme %q", scheme))
	}
}

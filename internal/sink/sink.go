// Package sink implements the Sink capability: the three endpoint kinds a
// Stream can multiplex its pipeline tee onto — UDP, RTSP, and WebRTC.
package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/AlexxIT/go2rtc/pkg/core"

	videonodecore "github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/mediamtx"
)

// Kind identifies which endpoint scheme a Sink serves.
type Kind string

const (
	KindUDP    Kind = "udp"
	KindRTSP   Kind = "rtsp"
	KindWebRTC Kind = "webrtc"
)

// Sink is one endpoint attached to a Stream's pipeline tee. Unlink must be
// idempotent: calling it twice, or calling it on a Sink that never finished
// linking, returns nil rather than an error.
type Sink interface {
	ID() string
	Kind() Kind
	Unlink(ctx context.Context) error
}

// UDPSink is bookkeeping only: the pipeline's multiudpsink element already
// carries the client list, so linking a UDP sink means regenerating that
// client list at the Stream layer. Unlink never fails.
type UDPSink struct {
	id   string
	Host string
	Port int
}

// NewUDPSink constructs a UDPSink. The caller is responsible for folding
// Host/Port into the pipeline's multiudpsink clients list.
func NewUDPSink(id, host string, port int) *UDPSink {
	return &UDPSink{id: id, Host: host, Port: port}
}

func (s *UDPSink) ID() string   { return s.id }
func (s *UDPSink) Kind() Kind   { return KindUDP }
func (s *UDPSink) Unlink(_ context.Context) error {
	return nil
}

// RTSPSink publishes a stream's pipeline through the process-wide RTSP
// server by registering a path whose runOnInit command launches the
// rendered pipeline description via gst-launch-1.0.
type RTSPSink struct {
	id       string
	streamID string
	client   *mediamtx.Client

	mu     sync.Mutex
	linked bool
}

// NewRTSPSink registers streamID as an RTSP path on client, running
// pipelineDescription as a gst-launch-1.0 command.
func NewRTSPSink(id, streamID string, client *mediamtx.Client, pipelineDescription string) (*RTSPSink, error) {
	command := fmt.Sprintf("gst-launch-1.0 -q %s", pipelineDescription)
	if err := client.AddPath(streamID, command); err != nil {
		return nil, videonodecore.Wrap(videonodecore.CodeLink, "failed to register RTSP path", err)
	}
	return &RTSPSink{id: id, streamID: streamID, client: client, linked: true}, nil
}

func (s *RTSPSink) ID() string { return s.id }
func (s *RTSPSink) Kind() Kind { return KindRTSP }

func (s *RTSPSink) Unlink(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.linked {
		return nil
	}
	if err := s.client.DeletePath(s.streamID); err != nil {
		return videonodecore.Wrap(videonodecore.CodeLink, "failed to unregister RTSP path", err)
	}
	s.linked = false
	return nil
}

// WebRTCSink wires a go2rtc consumer (a pion peer connection wrapped by
// go2rtc's webrtc.Conn) to a stream's media producer, mirroring the
// track-matching loop of a stream hub's consumer-wiring routine without the
// RTP passthrough fast path, since a freshly built pipeline has no prior
// sender state to optimize around.
type WebRTCSink struct {
	id       string
	consumer core.Consumer

	mu       sync.Mutex
	unlinked bool
}

// LinkWebRTC attaches cons to producer's media tracks, matching consumer
// medias to producer receivers by kind, and returns the constructed Sink.
func LinkWebRTC(id string, producer core.Producer, cons core.Consumer) (*WebRTCSink, error) {
	if err := attachConsumer(producer, cons); err != nil {
		return nil, videonodecore.Wrap(videonodecore.CodeLink, "failed to attach webrtc consumer", err)
	}
	return &WebRTCSink{id: id, consumer: cons}, nil
}

func (s *WebRTCSink) ID() string { return s.id }
func (s *WebRTCSink) Kind() Kind { return KindWebRTC }

func (s *WebRTCSink) Unlink(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlinked {
		return nil
	}
	if stopper, ok := s.consumer.(interface{ Stop() error }); ok {
		if err := stopper.Stop(); err != nil {
			return videonodecore.Wrap(videonodecore.CodeLink, "failed to stop webrtc consumer", err)
		}
	}
	s.unlinked = true
	return nil
}

// attachConsumer matches each of producer's tracks to a consumer media by
// kind and adds it, letting the consumer pick the codec it advertised.
func attachConsumer(producer core.Producer, cons core.Consumer) error {
	consumerMedias := cons.GetMedias()

	if len(consumerMedias) == 0 {
		for _, receiver := range producer.GetMedias() {
			for _, codec := range receiver.Codecs {
				media := &core.Media{
					Kind:      core.GetKind(codec.Name),
					Direction: core.DirectionRecvonly,
					Codecs:    []*core.Codec{codec},
				}
				track := producer.GetTrack(media, codec)
				if track == nil {
					continue
				}
				if err := cons.AddTrack(media, codec, track); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, media := range producer.GetMedias() {
		var matched *core.Media
		for _, m := range consumerMedias {
			if m.Kind == media.Kind && m.Direction == core.DirectionSendonly {
				matched = m
				break
			}
		}
		if matched == nil {
			continue
		}
		for _, codec := range media.Codecs {
			track := producer.GetTrack(media, codec)
			if track == nil {
				continue
			}
			if err := cons.AddTrack(matched, codec, track); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

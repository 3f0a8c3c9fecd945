package signalling

import (
	"fmt"
	"sync"

	rtccore "github.com/AlexxIT/go2rtc/pkg/core"
	gortc "github.com/AlexxIT/go2rtc/pkg/webrtc"
	pion "github.com/pion/webrtc/v4"

	"github.com/coredevice/videonode/internal/core"
)

// SessionState is the per-session WebRTC signalling state machine. The
// core is normally the offerer: add_session moves New straight to
// LocalOffered once it has generated its own SDP offer. RemoteOffered
// exists for the race where a client's own SessionDescription{offer}
// arrives before the core's, which the core then answers instead.
type SessionState int

const (
	StateNew SessionState = iota
	StateLocalOffered
	StateRemoteOffered
	StateAnswered
	StateConnected
	StateFailed
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLocalOffered:
		return "local_offered"
	case StateRemoteOffered:
		return "remote_offered"
	case StateAnswered:
		return "answered"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// transitions enumerates the legal moves of the session state machine.
// Anything not listed here is a protocol violation (core.CodeState).
var transitions = map[SessionState][]SessionState{
	StateNew:           {StateRemoteOffered, StateLocalOffered, StateClosed},
	StateRemoteOffered: {StateAnswered, StateClosed, StateFailed},
	StateLocalOffered:  {StateAnswered, StateClosed, StateFailed},
	StateAnswered:      {StateConnected, StateClosed, StateFailed},
	StateConnected:     {StateClosed, StateFailed},
	StateFailed:        {StateClosed},
	StateClosed:        {},
}

// Session is one signalling-protocol-managed WebRTC peer connection bound
// to a single producer stream.
type Session struct {
	ID       string
	StreamID string

	mu    sync.Mutex
	state SessionState
	pc    *pion.PeerConnection
	conn  *gortc.Conn // go2rtc's consumer wrapper, used by internal/sink.LinkWebRTC
}

// NewSession constructs a Session over an already-created peer connection,
// in StateNew. Tracks should be attached to pc (via sink.LinkWebRTC against
// Conn()) before CreateLocalOffer is called, so the offer's media lines
// already describe what the producer has to send.
func NewSession(streamID string, pc *pion.PeerConnection) *Session {
	conn := gortc.NewConn(pc)
	conn.Mode = rtccore.ModePassiveConsumer
	return &Session{
		ID:       core.NewID(),
		StreamID: streamID,
		state:    StateNew,
		pc:       pc,
		conn:     conn,
	}
}

// Conn returns the go2rtc consumer wrapper for sink.LinkWebRTC.
func (s *Session) Conn() *gortc.Conn {
	return s.conn
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition moves the session to next, rejecting any move absent from
// the transition table.
func (s *Session) transition(next SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}
	return core.New(core.CodeState, fmt.Sprintf("illegal session transition %s -> %s", s.state, next))
}

// CreateLocalOffer generates the core's own SDP offer and moves the
// session from StateNew to StateLocalOffered. ICE candidates are trickled
// separately via the peer connection's OnICECandidate callback rather
// than waited on here.
func (s *Session) CreateLocalOffer() (string, error) {
	if err := s.transition(StateLocalOffered); err != nil {
		return "", err
	}
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return "", core.Wrap(core.CodeBuild, "failed to create offer", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return "", core.Wrap(core.CodeBuild, "failed to set local description", err)
	}
	return offer.SDP, nil
}

// ApplyAnswer applies a remote SDP answer to the core's own offer, moving
// the session from StateLocalOffered to StateAnswered.
func (s *Session) ApplyAnswer(sdp string) error {
	if err := s.transition(StateAnswered); err != nil {
		return err
	}
	desc := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sdp}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return core.Wrap(core.CodeTransport, "failed to apply remote answer", err)
	}
	return nil
}

// ApplyRemoteOffer handles the race where a client sends its own SDP
// offer before the core's CreateLocalOffer reaches it: it applies the
// remote offer and produces the local answer, moving New straight to
// StateAnswered by way of StateRemoteOffered.
func (s *Session) ApplyRemoteOffer(sdp string) (string, error) {
	if err := s.transition(StateRemoteOffered); err != nil {
		return "", err
	}
	if err := s.conn.SetOffer(sdp); err != nil {
		return "", core.Wrap(core.CodeTransport, "failed to apply remote offer", err)
	}
	answer, err := s.conn.GetCompleteAnswer(nil, nil)
	if err != nil {
		return "", core.Wrap(core.CodeTransport, "failed to build answer", err)
	}
	if err := s.transition(StateAnswered); err != nil {
		return "", err
	}
	return answer, nil
}

// AddICECandidate applies one trickled remote candidate.
func (s *Session) AddICECandidate(candidate IceCandidatePayload) error {
	switch s.State() {
	case StateLocalOffered, StateRemoteOffered, StateAnswered, StateConnected:
	default:
		return core.New(core.CodeState, "candidate received before an offer was exchanged")
	}

	index := candidate.SDPMLineIndex
	init := pion.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMLineIndex: &index,
	}
	if err := s.pc.AddICECandidate(init); err != nil {
		return core.Wrap(core.CodeTransport, "failed to apply ice candidate", err)
	}
	return nil
}

// MarkConnected transitions the session once the peer connection reports
// PeerConnectionStateConnected.
func (s *Session) MarkConnected() error {
	return s.transition(StateConnected)
}

// MarkFailed transitions the session on peer connection failure.
func (s *Session) MarkFailed() error {
	return s.transition(StateFailed)
}

// Close tears down the underlying peer connection and marks the session
// closed. Calling Close twice is safe.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	return s.conn.Stop()
}

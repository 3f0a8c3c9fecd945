// Package signalling implements the WebRTC Signalling Core: the
// WebSocket-carried BindOffer/BindAnswer/SessionDescription/IceCandidate/
// EndSession/PeerStatus protocol and the per-session state machine that
// arbitrates it. The core is always the SDP offerer: binding a session
// against a producer stream generates the core's own offer rather than
// waiting on one from the browser.
package signalling

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	rtccore "github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/gorilla/websocket"
	pion "github.com/pion/webrtc/v4"

	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/events"
	"github.com/coredevice/videonode/internal/logging"
	"github.com/coredevice/videonode/internal/manager"
	"github.com/coredevice/videonode/internal/sink"
	"github.com/coredevice/videonode/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// ProducerLookup resolves the stream a session wants to consume to a
// go2rtc media producer; whatever is running the stream's pipeline
// registers itself here.
type ProducerLookup func(streamID string) (rtccore.Producer, bool)

// wsConn serializes writes to one WebSocket connection: the main read
// loop replies synchronously, but pion's ICE/connection-state callbacks
// fire from their own goroutines and also need to write, and gorilla's
// Conn forbids concurrent writers.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub owns every active signalling connection and the sessions multiplexed
// over them, and is the bridge between a browser's WebSocket and a
// Stream's sinks.
type Hub struct {
	mgr        *manager.Manager
	newAPI     func(streamID string) (*pion.API, error)
	producers  ProducerLookup
	iceServers []pion.ICEServer
	eventBus   *events.Bus

	mu       sync.RWMutex
	sessions map[string]*boundSession

	logger *slog.Logger
}

// boundSession pairs a Session with the stream it is linked against and
// the connection it talks over, so RemoveSession and the async pion
// callbacks can unlink the sink and reply without re-resolving either.
type boundSession struct {
	session *Session
	stream  *stream.Stream
	conn    *wsConn
	hasSink bool

	mu        sync.Mutex
	connected bool
}

// NewHub constructs a Hub. newAPI builds the pion API (codec/interceptor
// registration) for a given stream; producers resolves a stream's media
// source once a session is ready to be linked as a sink. eventBus may be
// nil, disabling SessionStateChangedEvent publication.
func NewHub(mgr *manager.Manager, newAPI func(streamID string) (*pion.API, error), producers ProducerLookup, iceServers []pion.ICEServer, eventBus *events.Bus) *Hub {
	return &Hub{
		mgr:        mgr,
		newAPI:     newAPI,
		producers:  producers,
		iceServers: iceServers,
		eventBus:   eventBus,
		sessions:   make(map[string]*boundSession),
		logger:     logging.GetLogger("signalling"),
	}
}

// ServeWS upgrades the connection and runs the per-connection read loop
// until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, "", core.CodeValidation, "malformed message envelope")
			continue
		}

		if err := h.dispatch(conn, msg); err != nil {
			var ve *core.Error
			code, message := core.CodeState, err.Error()
			if asCoreError(err, &ve) {
				code, message = ve.Code, ve.Message
			}
			h.sendError(conn, sessionIDFromPayload(msg), code, message)
		}
	}
}

func (h *Hub) dispatch(conn *wsConn, msg Message) error {
	switch msg.Type {
	case TypeBindOffer:
		return h.handleBindOffer(conn, msg)
	case TypeSessionDescription:
		return h.handleSessionDescription(conn, msg)
	case TypeIceCandidate:
		return h.handleIceCandidate(msg)
	case TypeEndSession:
		return h.handleEndSession(msg)
	case TypePeerStatus:
		return nil // client-sent status pings are acknowledgment-only
	default:
		return core.New(core.CodeValidation, "unknown message type")
	}
}

// handleBindOffer implements add_session: it validates the producer
// stream exists, builds a peer connection, links it to the stream as a
// WebRTC sink if a producer is available, replies BindAnswer immediately,
// then generates the core's own SDP offer and emits it as a
// SessionDescription. ICE candidates are wired to trickle out as they're
// gathered.
func (h *Hub) handleBindOffer(conn *wsConn, msg Message) error {
	var bind BindOfferPayload
	if err := json.Unmarshal(msg.Payload, &bind); err != nil {
		return core.New(core.CodeValidation, "malformed bind offer payload")
	}

	st, err := h.mgr.Get(bind.Producer)
	if err != nil {
		if st, err = h.mgr.GetByName(bind.Producer); err != nil {
			return core.New(core.CodeNotFound, "stream not found")
		}
	}

	api, err := h.newAPI(st.ID)
	if err != nil {
		return core.Wrap(core.CodeBuild, "failed to build webrtc api", err)
	}

	pc, err := api.NewPeerConnection(pion.Configuration{ICEServers: h.iceServers})
	if err != nil {
		return core.Wrap(core.CodeBuild, "failed to create peer connection", err)
	}

	session := NewSession(st.ID, pc)

	var webrtcSink *sink.WebRTCSink
	if producer, ok := h.producers(st.ID); ok {
		webrtcSink, err = sink.LinkWebRTC(session.ID, producer, session.Conn())
		if err != nil {
			_ = pc.Close()
			return err
		}
		if err := st.AddSink(webrtcSink); err != nil {
			_ = pc.Close()
			return err
		}
	}

	bound := &boundSession{session: session, stream: st, conn: conn, hasSink: webrtcSink != nil}
	h.mu.Lock()
	h.sessions[session.ID] = bound
	h.mu.Unlock()

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		var index uint16
		if init.SDPMLineIndex != nil {
			index = *init.SDPMLineIndex
		}
		_ = conn.writeMessage(Message{Type: TypeIceCandidate, Payload: mustMarshal(IceCandidatePayload{
			Session:       session.ID,
			Candidate:     init.Candidate,
			SDPMLineIndex: index,
		})})
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		h.onConnectionStateChange(session.ID, state)
	})

	answerMsg := Message{Type: TypeBindAnswer, Payload: mustMarshal(BindAnswerPayload{
		Producer: bind.Producer,
		Consumer: bind.Consumer,
		Session:  session.ID,
	})}
	if err := conn.writeMessage(answerMsg); err != nil {
		h.dropSession(session.ID)
		return err
	}

	offerSDP, err := session.CreateLocalOffer()
	if err != nil {
		h.dropSession(session.ID)
		return err
	}

	return conn.writeMessage(Message{Type: TypeSessionDescription, Payload: mustMarshal(SessionDescriptionPayload{
		Session: session.ID,
		Type:    "offer",
		SDP:     offerSDP,
	})})
}

// handleSessionDescription implements handle_sdp: an "answer" applies to
// the core's own offer (the common path); an "offer" is the race where a
// client's SDP arrives before the core's, answered in turn.
func (h *Hub) handleSessionDescription(conn *wsConn, msg Message) error {
	var desc SessionDescriptionPayload
	if err := json.Unmarshal(msg.Payload, &desc); err != nil {
		return core.New(core.CodeValidation, "malformed session description payload")
	}

	bound, ok := h.lookup(desc.Session)
	if !ok {
		return core.New(core.CodeNotFound, "session not found")
	}

	switch desc.Type {
	case "answer":
		return bound.session.ApplyAnswer(desc.SDP)
	case "offer":
		answerSDP, err := bound.session.ApplyRemoteOffer(desc.SDP)
		if err != nil {
			return err
		}
		return conn.writeMessage(Message{Type: TypeSessionDescription, Payload: mustMarshal(SessionDescriptionPayload{
			Session: desc.Session,
			Type:    "answer",
			SDP:     answerSDP,
		})})
	default:
		return core.New(core.CodeValidation, "session description type must be offer or answer")
	}
}

// handleIceCandidate implements handle_ice.
func (h *Hub) handleIceCandidate(msg Message) error {
	var candidate IceCandidatePayload
	if err := json.Unmarshal(msg.Payload, &candidate); err != nil {
		return core.New(core.CodeValidation, "malformed ice candidate payload")
	}

	bound, ok := h.lookup(candidate.Session)
	if !ok {
		return core.New(core.CodeNotFound, "session not found")
	}
	return bound.session.AddICECandidate(candidate)
}

// handleEndSession implements remove_session: idempotent, a repeat call
// (or one naming a session that never existed) succeeds silently rather
// than reporting NotFound, unlike stream removal.
func (h *Hub) handleEndSession(msg Message) error {
	var end EndSessionPayload
	if err := json.Unmarshal(msg.Payload, &end); err != nil {
		return core.New(core.CodeValidation, "malformed end session payload")
	}
	return h.RemoveSession(end.Session)
}

// RemoveSession tears a session down by id. It is idempotent: removing a
// session that is already gone, or was never bound, succeeds silently.
func (h *Hub) RemoveSession(sessionID string) error {
	bound, ok := h.dropSession(sessionID)
	if !ok {
		return nil
	}
	return bound.session.Close()
}

// dropSession removes a session from the index and unlinks its sink, if
// any, returning the removed entry. Safe to call more than once for the
// same id; only the first call reports ok.
func (h *Hub) dropSession(sessionID string) (*boundSession, bool) {
	h.mu.Lock()
	bound, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return nil, false
	}

	if bound.hasSink {
		if err := bound.stream.RemoveSink(context.Background(), sessionID); err != nil {
			h.logger.Debug("failed to unlink session sink", "session_id", sessionID, "error", err)
		}
	}

	bound.mu.Lock()
	wasConnected := bound.connected
	bound.mu.Unlock()
	if wasConnected {
		decActivePeers(bound.session.StreamID)
	}
	return bound, true
}

func (h *Hub) lookup(sessionID string) (*boundSession, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	bound, ok := h.sessions[sessionID]
	return bound, ok
}

func (h *Hub) onConnectionStateChange(sessionID string, state pion.PeerConnectionState) {
	bound, ok := h.lookup(sessionID)
	if !ok {
		return
	}

	switch state {
	case pion.PeerConnectionStateConnected:
		_ = bound.session.MarkConnected()
		bound.mu.Lock()
		bound.connected = true
		bound.mu.Unlock()
		incActivePeers(bound.session.StreamID)
		h.publishSessionState(bound.session, "connected")
	case pion.PeerConnectionStateFailed:
		_ = bound.session.MarkFailed()
		h.dropSession(sessionID)
		h.publishSessionState(bound.session, "failed")
	case pion.PeerConnectionStateDisconnected, pion.PeerConnectionStateClosed:
		h.dropSession(sessionID)
		h.publishSessionState(bound.session, "closed")
	}
}

func (h *Hub) publishSessionState(session *Session, state string) {
	if h.eventBus == nil {
		return
	}
	h.eventBus.Publish(events.SessionStateChangedEvent{
		SessionID: session.ID,
		StreamID:  session.StreamID,
		State:     state,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (h *Hub) sendError(conn *wsConn, sessionID string, code core.Code, message string) {
	_ = conn.writeMessage(Message{Type: TypeError, Payload: mustMarshal(ErrorPayload{
		Session: sessionID,
		Code:    string(code),
		Message: message,
	})})
}

// SessionCount returns the number of active sessions, for observability.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func sessionIDFromPayload(msg Message) string {
	var probe struct {
		Session string `json:"session"`
	}
	_ = json.Unmarshal(msg.Payload, &probe)
	return probe.Session
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func asCoreError(err error, target **core.Error) bool {
	ce, ok := err.(*core.Error)
	if ok {
		*target = ce
	}
	return ok
}

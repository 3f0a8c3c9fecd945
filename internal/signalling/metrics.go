package signalling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var webrtcActivePeers = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "videonode",
	Subsystem: "webrtc",
	Name:      "active_peers",
	Help:      "Number of active WebRTC peers per stream",
}, []string{"stream_id"})

func incActivePeers(streamID string) {
	webrtcActivePeers.WithLabelValues(streamID).Inc()
}

func decActivePeers(streamID string) {
	webrtcActivePeers.WithLabelValues(streamID).Dec()
}

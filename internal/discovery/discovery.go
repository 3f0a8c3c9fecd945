// Package discovery implements the Discovery Coordinator: a WS-Discovery
// probe sweep followed by an ONVIF SOAP device/profile/stream-uri query for
// each device that answers, feeding the results into the Source Registry
// as Redirect sources.
package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/IOTechSystems/onvif"
	"github.com/IOTechSystems/onvif/media"
	xsdonvif "github.com/IOTechSystems/onvif/xsd/onvif"

	"github.com/coredevice/videonode/internal/core"
	"github.com/coredevice/videonode/internal/logging"
	"github.com/coredevice/videonode/internal/sources"
)

// wsDiscoveryAddr is the standard WS-Discovery multicast group and port.
const wsDiscoveryAddr = "239.255.255.250:3702"

// probeMessage is the minimal WS-Discovery Probe envelope for the ONVIF
// NetworkVideoTransmitter device type.
const probeMessage = `<?xml version="1.0" encoding="UTF-8"?>
<e:Envelope xmlns:e="http://www.w3.org/2003/05/soap-envelope"
            xmlns:w="http://schemas.xmlsoap.org/ws/2005/04/discovery"
            xmlns:dn="http://www.onvif.org/ver10/network/wsdl">
  <e:Header>
    <w:MessageID>urn:uuid:%s</w:MessageID>
    <w:To>urn:schemas-xmlsoap-org:ws:2005:04:discovery</w:To>
    <w:Action>http://schemas.xmlsoap.org/ws/2005/04/discovery/Probe</w:Action>
  </e:Header>
  <e:Body>
    <w:Probe>
      <w:Types>dn:NetworkVideoTransmitter</w:Types>
    </w:Probe>
  </e:Body>
</e:Envelope>`

// MissedPeriodsBeforeRemoval is how many consecutive discovery sweeps a
// previously seen device may fail to answer before its Redirect source is
// dropped from the registry.
const MissedPeriodsBeforeRemoval = 3

// Coordinator runs periodic WS-Discovery sweeps, resolves each responding
// device's media profiles over ONVIF, and keeps the Source Registry's
// Redirect entries in sync with what actually answers.
type Coordinator struct {
	registry *sources.Registry
	interval time.Duration
	username string
	password string
	logger   *slog.Logger

	mu     sync.Mutex
	missed map[string]int // keyed by redirect URL
}

// NewCoordinator constructs a Coordinator. username/password are applied
// to every ONVIF SOAP call; pass empty strings for unauthenticated
// devices.
func NewCoordinator(registry *sources.Registry, interval time.Duration, username, password string) *Coordinator {
	return &Coordinator{
		registry: registry,
		interval: interval,
		username: username,
		password: password,
		logger:   logging.GetLogger("discovery"),
		missed:   make(map[string]int),
	}
}

// Run sweeps at the configured interval until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Coordinator) sweep(ctx context.Context) {
	xaddrs, err := probe(ctx, 3*time.Second)
	if err != nil {
		c.logger.Warn("WS-Discovery probe failed", "error", err)
		return
	}

	answered := make(map[string]bool, len(xaddrs))
	for _, xaddr := range xaddrs {
		answered[xaddr] = true
		refs, err := c.resolveDevice(ctx, xaddr)
		if err != nil {
			c.logger.Debug("ONVIF resolution failed", "xaddr", xaddr, "error", err)
			continue
		}
		for _, ref := range refs {
			c.registry.AddRedirect(ref)
			answered[ref.RedirectURL] = true
		}
	}

	c.ageOutMissing(answered)
}

// ageOutMissing drops any previously known redirect that no answering
// device has resolved for MissedPeriodsBeforeRemoval consecutive sweeps.
func (c *Coordinator) ageOutMissing(answered map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for xaddr := range c.missed {
		if answered[xaddr] {
			delete(c.missed, xaddr)
			continue
		}
	}
	for xaddr := range answered {
		delete(c.missed, xaddr)
	}

	// Anything we'd previously resolved but didn't see this sweep starts
	// (or continues) aging.
	refs, err := c.registry.ListAvailable(context.Background())
	if err != nil {
		return
	}
	for _, ref := range refs {
		if ref.Kind != sources.KindRedirect {
			continue
		}
		xaddr := ref.RedirectURL
		if answered[xaddr] {
			continue
		}
		c.missed[xaddr]++
		if c.missed[xaddr] >= MissedPeriodsBeforeRemoval {
			c.registry.RemoveRedirect(ref.RedirectURL)
			delete(c.missed, xaddr)
			c.logger.Info("redirect source removed after missed discovery periods", "url", ref.RedirectURL)
		}
	}
}

// resolveDevice queries an ONVIF device's media profiles and, for each,
// its RTSP stream URI, producing one Redirect Ref per profile.
func (c *Coordinator) resolveDevice(_ context.Context, xaddr string) ([]sources.Ref, error) {
	dev, err := onvif.NewDevice(onvif.DeviceParams{
		Xaddr:    xaddr,
		Username: c.username,
		Password: c.password,
	})
	if err != nil {
		return nil, core.Wrap(core.CodeTransport, "failed to create onvif device", err)
	}

	profiles, err := getProfiles(dev)
	if err != nil {
		return nil, err
	}

	var refs []sources.Ref
	for _, profile := range profiles {
		uri, err := getStreamURI(dev, profile.token)
		if err != nil {
			c.logger.Debug("failed to get stream uri", "xaddr", xaddr, "profile", profile.token, "error", err)
			continue
		}
		refs = append(refs, sources.Ref{
			Kind:        sources.KindRedirect,
			Name:        fmt.Sprintf("%s (%s)", xaddr, profile.name),
			RedirectURL: uri,
		})
	}
	return refs, nil
}

type onvifProfile struct {
	token string
	name  string
}

func getProfiles(dev *onvif.Device) ([]onvifProfile, error) {
	resp, err := dev.CallMethod(media.GetProfiles{})
	if err != nil {
		return nil, core.Wrap(core.CodeTransport, "GetProfiles failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Wrap(core.CodeTransport, "failed to read GetProfiles response", err)
	}

	var envelope struct {
		XMLName xml.Name `xml:"Envelope"`
		Body    struct {
			GetProfilesResponse media.GetProfilesResponse `xml:"GetProfilesResponse"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, core.Wrap(core.CodeTransport, "failed to parse GetProfiles response", err)
	}

	out := make([]onvifProfile, 0, len(envelope.Body.GetProfilesResponse.Profiles))
	for _, p := range envelope.Body.GetProfilesResponse.Profiles {
		out = append(out, onvifProfile{token: string(p.Token), name: string(p.Name)})
	}
	return out, nil
}

func getStreamURI(dev *onvif.Device, profileToken string) (string, error) {
	stream := xsdonvif.StreamType("RTP-Unicast")
	protocol := xsdonvif.TransportProtocol("RTSP")
	token := xsdonvif.ReferenceToken(profileToken)

	req := media.GetStreamUri{
		ProfileToken: &token,
		StreamSetup: &xsdonvif.StreamSetup{
			Stream:    &stream,
			Transport: &xsdonvif.Transport{Protocol: &protocol},
		},
	}

	resp, err := dev.CallMethod(req)
	if err != nil {
		return "", core.Wrap(core.CodeTransport, "GetStreamUri failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.Wrap(core.CodeTransport, "failed to read GetStreamUri response", err)
	}

	var envelope struct {
		XMLName xml.Name `xml:"Envelope"`
		Body    struct {
			GetStreamUriResponse media.GetStreamUriResponse `xml:"GetStreamUriResponse"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return "", core.Wrap(core.CodeTransport, "failed to parse GetStreamUri response", err)
	}

	return string(envelope.Body.GetStreamUriResponse.MediaUri.Uri), nil
}

// probe sends a single WS-Discovery Probe to the standard multicast group
// and collects distinct responder addresses for the given window.
func probe(ctx context.Context, window time.Duration) ([]string, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, core.Wrap(core.CodeTransport, "failed to open discovery socket", err)
	}
	defer conn.Close()

	group, err := net.ResolveUDPAddr("udp4", wsDiscoveryAddr)
	if err != nil {
		return nil, core.Wrap(core.CodeTransport, "failed to resolve ws-discovery address", err)
	}

	message := fmt.Sprintf(probeMessage, core.NewID())
	if _, err := conn.WriteTo([]byte(message), group); err != nil {
		return nil, core.Wrap(core.CodeTransport, "failed to send ws-discovery probe", err)
	}

	deadline, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	go func() {
		<-deadline.Done()
		conn.SetReadDeadline(time.Now())
	}()

	seen := make(map[string]bool)
	buf := make([]byte, 8192)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			break
		}
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			host = addr.String()
		}
		xaddr, ok := extractXAddr(buf[:n])
		if !ok {
			xaddr = fmt.Sprintf("%s:80", host)
		}
		seen[xaddr] = true
	}

	out := make([]string, 0, len(seen))
	for xaddr := range seen {
		out = append(out, xaddr)
	}
	return out, nil
}

// extractXAddr pulls the first XAddrs entry out of a ProbeMatch response,
// a plain substring scan since the full WS-Discovery XML schema is more
// than this coordinator needs.
func extractXAddr(body []byte) (string, bool) {
	const open, close = "<d:XAddrs>", "</d:XAddrs>"
	s := string(body)
	start := indexOf(s, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := indexOf(s[start:], close)
	if end < 0 {
		return "", false
	}
	field := s[start : start+end]
	if sp := indexOf(field, " "); sp >= 0 {
		field = field[:sp]
	}
	return field, field != ""
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

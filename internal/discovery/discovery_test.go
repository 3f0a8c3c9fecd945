package discovery

import "testing"

func TestExtractXAddrFindsField(t *testing.T) {
	body := []byte(`<d:XAddrs>http://192.168.1.50:80/onvif/device_service</d:XAddrs>`)
	xaddr, ok := extractXAddr(body)
	if !ok {
		t.Fatal("expected ok")
	}
	if xaddr != "http://192.168.1.50:80/onvif/device_service" {
		t.Errorf("xaddr = %q", xaddr)
	}
}

func TestExtractXAddrTrimsAdditionalEntries(t *testing.T) {
	body := []byte(`<d:XAddrs>http://192.168.1.50:80/onvif/device_service http://[fe80::1]:80/onvif/device_service</d:XAddrs>`)
	xaddr, ok := extractXAddr(body)
	if !ok {
		t.Fatal("expected ok")
	}
	if xaddr != "http://192.168.1.50:80/onvif/device_service" {
		t.Errorf("xaddr = %q", xaddr)
	}
}

func TestExtractXAddrMissingField(t *testing.T) {
	if _, ok := extractXAddr([]byte(`<d:Types>dn:NetworkVideoTransmitter</d:Types>`)); ok {
		t.Error("expected ok=false for missing XAddrs field")
	}
}

func TestIndexOf(t *testing.T) {
	if got := indexOf("hello world", "world"); got != 6 {
		t.Errorf("indexOf = %d, want 6", got)
	}
	if got := indexOf("hello world", "xyz"); got != -1 {
		t.Errorf("indexOf = %d, want -1", got)
	}
}

func TestNewCoordinatorStartsWithEmptyMissedSet(t *testing.T) {
	c := NewCoordinator(nil, 0, "", "")
	if len(c.missed) != 0 {
		t.Errorf("missed = %v, want empty", c.missed)
	}
}

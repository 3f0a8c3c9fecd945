package settings

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsEmptySet(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "streams.json"))
	set, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(set.Streams) != 0 {
		t.Errorf("expected empty stream set, got %d streams", len(set.Streams))
	}
	if set.Version != 1 {
		t.Errorf("Version = %d, want 1", set.Version)
	}
}

func TestStoreThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streams.json")
	m := NewManager(path)

	set := &StreamSet{
		Version: 1,
		Streams: []StoredStream{
			{
				ID:         "abc",
				Name:       "front-door",
				SourceKind: "local",
				Source:     "/dev/video0",
				Endpoints: []StoredEndpoint{
					{Scheme: "udp", Host: "192.168.0.1", Port: 42},
				},
			},
		},
	}

	if err := m.Store(set); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("expected 1 stream, got %d", len(got.Streams))
	}
	if got.Streams[0].Name != "front-door" {
		t.Errorf("Name = %q, want front-door", got.Streams[0].Name)
	}
	if got.Streams[0].Endpoints[0].Port != 42 {
		t.Errorf("Port = %d, want 42", got.Streams[0].Endpoints[0].Port)
	}
}

func TestStoreLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "streams.json")
	m := NewManager(path)

	if err := m.Store(&StreamSet{Version: 1}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	entries, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no leftover temp files, found %v", entries)
	}
}

func TestValidateStreamSetRejectsDuplicateNames(t *testing.T) {
	set := &StreamSet{Streams: []StoredStream{
		{Name: "cam-1"},
		{Name: "cam-1"},
	}}
	if err := ValidateStreamSet(set); err == nil {
		t.Fatal("expected error for duplicate stream names")
	}
}

func TestValidateStreamSetRejectsMissingName(t *testing.T) {
	set := &StreamSet{Streams: []StoredStream{{Name: ""}}}
	if err := ValidateStreamSet(set); err == nil {
		t.Fatal("expected error for missing stream name")
	}
}

package api

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coredevice/videonode/internal/events"
	"github.com/coredevice/videonode/internal/manager"
	"github.com/coredevice/videonode/internal/sources"
	"github.com/coredevice/videonode/internal/stream"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	opts := &Options{
		AuthUsername: "test",
		AuthPassword: "test",
		Manager:      manager.New(nil, nil),
		Sources:      sources.NewRegistry(""),
		EventBus:     events.New(),
	}
	return NewServer(opts)
}

func TestSSEConnectionAndEvents(t *testing.T) {
	server := testServer(t)

	ts := httptest.NewServer(server.mux)
	defer ts.Close()

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	sseURL := fmt.Sprintf("%s/api/events?auth=%s", ts.URL, credentials)

	resp, err := http.Get(sseURL)
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	scanner := bufio.NewScanner(resp.Body)
	messageChan := make(chan string, 10)

	go func() {
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data:") {
				messageChan <- line
			}
		}
	}()

	timeout := time.After(50 * time.Millisecond)
	select {
	case msg := <-messageChan:
		if !strings.Contains(msg, "SSE connection established") {
			t.Errorf("Expected connection established message, got: %s", msg)
		}
	case <-timeout:
		t.Fatal("Timeout waiting for initial SSE message")
	}

	server.eventBus.Publish(events.StreamCreatedEvent{
		Stream:    domainToAPIStream(mustAddStream(t, server, "test-stream")),
		Action:    "created",
		Timestamp: time.Now().Format(time.RFC3339),
	})

	timeout = time.After(50 * time.Millisecond)
	select {
	case msg := <-messageChan:
		if !strings.Contains(msg, "test-stream") {
			t.Errorf("Expected stream event with test data, got: %s", msg)
		}
	case <-timeout:
		t.Fatal("Timeout waiting for stream created event")
	}
}

func TestSSEStreamCreatedViaAPI(t *testing.T) {
	server := testServer(t)

	ts := httptest.NewServer(server.mux)
	defer ts.Close()

	credentials := base64.StdEncoding.EncodeToString([]byte("test:test"))
	sseURL := fmt.Sprintf("%s/api/events?auth=%s", ts.URL, credentials)

	resp, err := http.Get(sseURL)
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	messageChan := make(chan string, 10)

	go func() {
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data:") {
				messageChan <- line
			}
		}
	}()

	timeout := time.After(50 * time.Millisecond)
	select {
	case <-messageChan:
		// initial connection message
	case <-timeout:
		t.Fatal("Timeout waiting for initial SSE message")
	}

	createPayload := `{
		"name": "api-stream",
		"source": {"kind": "gst", "value": "smpte"},
		"capture": {"width": 1280, "height": 720, "framerate_num": 1, "framerate_den": 30, "encode": "h264"},
		"endpoints": [{"scheme": "udp", "host": "127.0.0.1", "port": 5002}]
	}`
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/streams", strings.NewReader(createPayload))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Second}
	apiResp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to execute POST request: %v", err)
	}
	defer apiResp.Body.Close()

	if apiResp.StatusCode != http.StatusOK && apiResp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected success status from POST, got %d", apiResp.StatusCode)
	}

	timeout = time.After(200 * time.Millisecond)
	select {
	case msg := <-messageChan:
		if !strings.Contains(msg, "api-stream") || !strings.Contains(msg, `"action":"created"`) {
			t.Errorf("Expected stream created event from API call, got: %s", msg)
		}
	case <-timeout:
		t.Fatal("Timeout waiting for API-triggered stream created event")
	}
}

func TestSSEAuthFailure(t *testing.T) {
	server := testServer(t)

	ts := httptest.NewServer(server.mux)
	defer ts.Close()

	sseURL := fmt.Sprintf("%s/api/events", ts.URL)
	resp, err := http.Get(sseURL)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte("wrong:wrong"))
	sseURL = fmt.Sprintf("%s/api/events?auth=%s", ts.URL, credentials)
	resp, err = http.Get(sseURL)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401 for wrong auth, got %d", resp.StatusCode)
	}
}

func mustAddStream(t *testing.T, server *Server, name string) *stream.Stream {
	t.Helper()
	st, err := server.manager.Add(testStreamSpec(name))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return st
}

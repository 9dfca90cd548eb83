package main

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"steplab/host/stream"
	"steplab/protocol"
)

func TestProgressRelaysLinesAsRead(t *testing.T) {
	if progress(nil, false) != nil {
		t.Errorf("expected no callback without a hub or echo")
	}

	hub := stream.NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Each line reaches the client before the run is complete
	line := progress(hub, false)
	line("20 0.000000")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg stream.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read sample: %v", err)
	}
	if msg.Type != "sample" || msg.ElapsedMS != 20 {
		t.Errorf("unexpected sample %+v", msg)
	}

	line(protocol.EndMarker(1))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read end: %v", err)
	}
	if msg.Type != "end" || msg.Axis != 1 {
		t.Errorf("unexpected end message %+v", msg)
	}
}

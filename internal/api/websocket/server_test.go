package websocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/publisher"
)

func startServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(log)
	go hub.Run(ctx)

	srv := NewServer(hub, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown(context.Background())
		cancel()
	})
	return hub, ts
}

func dial(t *testing.T, hub *Hub, ts *httptest.Server, want int) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/ratings"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() < want {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func read(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestBroadcastReachesClients(t *testing.T) {
	hub, ts := startServer(t)
	a := dial(t, hub, ts, 1)
	b := dial(t, hub, ts, 2)

	payload := json.RawMessage(`{"upload_id":"u1"}`)
	hub.Broadcast(ServerMessage{Type: MessageTypeEvent, Stream: publisher.StreamElo, Payload: payload})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		if msg.Type != MessageTypeEvent || msg.Stream != publisher.StreamElo {
			t.Errorf("got %s on %q, want event on %q", msg.Type, msg.Stream, publisher.StreamElo)
		}
		if string(msg.Payload) != string(payload) {
			t.Errorf("payload = %s, want %s", msg.Payload, payload)
		}
	}
}

func TestSubscribeFiltersStreams(t *testing.T) {
	hub, ts := startServer(t)
	conn := dial(t, hub, ts, 1)

	if err := conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, Streams: []string{publisher.StreamLeagueBaseline}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := read(t, conn); msg.Type != MessageTypeSubscribed {
		t.Fatalf("got %s, want subscribed", msg.Type)
	}

	hub.Broadcast(ServerMessage{Type: MessageTypeEvent, Stream: publisher.StreamElo, Payload: json.RawMessage(`{}`)})
	hub.Broadcast(ServerMessage{Type: MessageTypeEvent, Stream: publisher.StreamLeagueBaseline, Payload: json.RawMessage(`{"id":"b1"}`)})

	msg := read(t, conn)
	if msg.Stream != publisher.StreamLeagueBaseline {
		t.Errorf("first event on %q, want %q", msg.Stream, publisher.StreamLeagueBaseline)
	}
}

func TestUnknownClientMessage(t *testing.T) {
	hub, ts := startServer(t)
	conn := dial(t, hub, ts, 1)

	if err := conn.WriteJSON(ClientMessage{Type: "dance"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	msg := read(t, conn)
	if msg.Type != MessageTypeError {
		t.Fatalf("got %s, want error", msg.Type)
	}
	var body ErrorMessage
	if err := json.Unmarshal(msg.Payload, &body); err != nil || body.Code != "unknown_message_type" {
		t.Errorf("error payload = %s (%v)", msg.Payload, err)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, ts := startServer(t)
	conn := dial(t, hub, ts, 1)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client still registered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://league.example"})

	r := httptest.NewRequest("GET", "/ws/ratings", nil)
	r.Header.Set("Origin", "https://league.example")
	if !check(r) {
		t.Error("allowed origin rejected")
	}
	r.Header.Set("Origin", "https://evil.example")
	if check(r) {
		t.Error("foreign origin accepted")
	}
}

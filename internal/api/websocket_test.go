package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/portaoweb/portao-core/internal/gate"
	"github.com/portaoweb/portao-core/internal/infrastructure/config"
)

func testHub() *Hub {
	return NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
}

func mockClient(hub *Hub) *WSClient {
	return &WSClient{
		id:   "mock",
		hub:  hub,
		send: make(chan []byte, wsSendBufferSize),
	}
}

func receive(t *testing.T, ch <-chan []byte) WSMessage {
	t.Helper()
	select {
	case data := <-ch:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return WSMessage{}
	}
}

// ─── Hub ───────────────────────────────────────────────────────────

func TestHub_BroadcastToAllClients(t *testing.T) {
	hub := testHub()
	a, b := mockClient(hub), mockClient(hub)
	hub.Register(a)
	hub.Register(b)

	if err := hub.StatusChanged(context.Background(), gate.StatusOpen, gate.SourceHTTP); err != nil {
		t.Fatalf("StatusChanged() error = %v", err)
	}

	for name, c := range map[string]*WSClient{"a": a, "b": b} {
		msg := receive(t, c.send)
		if msg.Type != WSTypeEvent || msg.EventType != EventStatus {
			t.Errorf("client %s: type=%q event_type=%q", name, msg.Type, msg.EventType)
		}
		if msg.Payload != "aberto" {
			t.Errorf("client %s: payload = %v, want aberto", name, msg.Payload)
		}
		if msg.Timestamp == "" {
			t.Errorf("client %s: timestamp missing", name)
		}
	}
}

func TestHub_SlowClientSkipped(t *testing.T) {
	hub := testHub()
	slow := &WSClient{id: "slow", hub: hub, send: make(chan []byte)} // unbuffered, nobody reading
	fast := mockClient(hub)
	hub.Register(slow)
	hub.Register(fast)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(EventStatus, "fechado")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
	if msg := receive(t, fast.send); msg.Payload != "fechado" {
		t.Errorf("fast client payload = %v", msg.Payload)
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub()

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := mockClient(hub)
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	// A second unregister must not double-close the send channel.
	hub.Unregister(client)
}

func TestHub_RunClosesClients(t *testing.T) {
	hub := testHub()
	client := mockClient(hub)
	hub.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if _, ok := <-client.send; ok {
		t.Error("send channel still open after shutdown")
	}
	if hub.Register(mockClient(hub)) {
		t.Error("Register() after shutdown should report false")
	}
	// Broadcasting after shutdown is a no-op.
	hub.Broadcast(EventStatus, "aberto")
}

// ─── Push channel over a real connection ───────────────────────────

func dialWS(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func postStatus(t *testing.T, addr, status string) {
	t.Helper()
	resp, err := http.Post("http://"+addr+"/statusPortao", "application/json",
		strings.NewReader(`{"status":"`+status+`"}`))
	if err != nil {
		t.Fatalf("POST /statusPortao error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /statusPortao status = %d", resp.StatusCode)
	}
}

func TestWebSocket_InitialStatusBeforeAnyReport(t *testing.T) {
	srv, _ := testServer(t, nil)
	addr := startServer(t, srv)

	conn := dialWS(t, addr)
	msg := readWS(t, conn)

	if msg.EventType != EventStatus || msg.Payload != "desconhecido" {
		t.Errorf("initial message = %+v, want statusPortao/desconhecido", msg)
	}
}

func TestWebSocket_NewClientReceivesCurrentStatus(t *testing.T) {
	srv, _ := testServer(t, nil)
	addr := startServer(t, srv)

	postStatus(t, addr, "aberto")

	conn := dialWS(t, addr)
	if msg := readWS(t, conn); msg.Payload != "aberto" {
		t.Errorf("initial payload = %v, want aberto", msg.Payload)
	}
}

func TestWebSocket_BroadcastReachesEveryClient(t *testing.T) {
	srv, _ := testServer(t, nil)
	addr := startServer(t, srv)

	a := dialWS(t, addr)
	b := dialWS(t, addr)
	// Draining the initial status proves both clients are registered.
	readWS(t, a)
	readWS(t, b)

	postStatus(t, addr, "fechado")

	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		if msg := readWS(t, conn); msg.Payload != "fechado" {
			t.Errorf("client %s payload = %v, want fechado", name, msg.Payload)
		}
	}
	if n := srv.Hub().ClientCount(); n != 2 {
		t.Errorf("ClientCount() = %d, want 2", n)
	}
}

func TestWebSocket_RepeatedStatusIsRebroadcast(t *testing.T) {
	srv, _ := testServer(t, nil)
	addr := startServer(t, srv)

	conn := dialWS(t, addr)
	readWS(t, conn)

	postStatus(t, addr, "aberto")
	postStatus(t, addr, "aberto")

	for i := 0; i < 2; i++ {
		if msg := readWS(t, conn); msg.Payload != "aberto" {
			t.Errorf("message %d payload = %v, want aberto", i, msg.Payload)
		}
	}
}

func TestWebSocket_InvalidReportNotBroadcast(t *testing.T) {
	srv, _ := testServer(t, nil)
	addr := startServer(t, srv)

	conn := dialWS(t, addr)
	readWS(t, conn)

	resp, err := http.Post("http://"+addr+"/statusPortao", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	// The next thing the client sees must be the following valid report.
	postStatus(t, addr, "parado")
	if msg := readWS(t, conn); msg.Payload != "parado" {
		t.Errorf("payload = %v, want parado", msg.Payload)
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	srv, _ := testServer(t, nil)
	addr := startServer(t, srv)

	conn := dialWS(t, addr)
	readWS(t, conn)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	msg := readWS(t, conn)
	if msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("response = %+v, want pong p1", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "subscribe", ID: "s1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError || msg.ID != "s1" {
		t.Errorf("response = %+v, want error s1", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("response = %+v, want error", msg)
	}
}

func TestWebSocket_ServerCloseDisconnectsClients(t *testing.T) {
	srv, _ := testServer(t, nil)
	addr := startServer(t, srv)

	conn := dialWS(t, addr)
	readWS(t, conn)

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ReadMessage() after server close: expected error")
	}
}

// TestEndToEnd walks the flow a user sees: the page connects, the controller
// reports a status, and a button press reaches the device.
func TestEndToEnd(t *testing.T) {
	var (
		mu   sync.Mutex
		hits []string
	)
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer device.Close()

	srv, _ := testServer(t, func(d *Deps) {
		d.Relay = gate.NewRelay(gate.RelayConfig{
			Address: strings.TrimPrefix(device.URL, "http://"),
			Timeout: 2 * time.Second,
		}, d.Logger)
	})
	addr := startServer(t, srv)

	conn := dialWS(t, addr)
	if msg := readWS(t, conn); msg.Payload != "desconhecido" {
		t.Fatalf("initial payload = %v", msg.Payload)
	}

	postStatus(t, addr, "fechado")
	if msg := readWS(t, conn); msg.Payload != "fechado" {
		t.Fatalf("pushed payload = %v, want fechado", msg.Payload)
	}

	resp, err := http.Post("http://"+addr+"/comando/abrir", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /comando/abrir error = %v", err)
	}
	defer resp.Body.Close()

	var res gate.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success {
		t.Errorf("result = %+v, want success", res)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 1 || hits[0] != "GET /abrir" {
		t.Errorf("device hits = %v, want [GET /abrir]", hits)
	}
}

package mqtt

import (
	"net"
	"strconv"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// testBroker is an in-process MQTT broker listening on a free local port.
type testBroker struct {
	server *mochi.Server
	port   int
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func startBroker(t *testing.T) *testBroker {
	t.Helper()

	server := mochi.New(&mochi.Options{InlineClient: true})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("AddHook() error = %v", err)
	}

	port := freePort(t)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("AddListener() error = %v", err)
	}

	go func() {
		//nolint:errcheck // Serve failures surface as connection errors in the test
		server.Serve()
	}()
	t.Cleanup(func() {
		server.Close()
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("broker did not start listening on %s: %v", addr, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	return &testBroker{server: server, port: port}
}

// capture subscribes the broker's inline client to filter and forwards
// every delivered message.
func (b *testBroker) capture(t *testing.T, filter string, id int) <-chan packets.Packet {
	t.Helper()
	ch := make(chan packets.Packet, 16)
	err := b.server.Subscribe(filter, id, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		select {
		case ch <- pk:
		default:
		}
	})
	if err != nil {
		t.Fatalf("inline Subscribe(%q) error = %v", filter, err)
	}
	return ch
}

func waitPacket(t *testing.T, ch <-chan packets.Packet) packets.Packet {
	t.Helper()
	select {
	case pk := <-ch:
		return pk
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for MQTT message")
		return packets.Packet{}
	}
}

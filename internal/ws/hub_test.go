package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub, testID uint) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.AddConnection(testID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	hub := NewHub()
	c1 := dialHub(t, hub, 1)
	c2 := dialHub(t, hub, 1)

	hub.Broadcast(1, Message{Type: EventTestForceEnd, Data: map[string]uint{"test_id": 1}})

	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readMessage(t, conn)
		if msg.Type != EventTestForceEnd {
			t.Errorf("message type = %s, want %s", msg.Type, EventTestForceEnd)
		}
	}
}

func TestBroadcastScopedToTest(t *testing.T) {
	hub := NewHub()
	c1 := dialHub(t, hub, 1)
	c2 := dialHub(t, hub, 2)

	hub.Broadcast(1, Message{Type: EventParticipantJoined})

	if msg := readMessage(t, c1); msg.Type != EventParticipantJoined {
		t.Errorf("message type = %s, want %s", msg.Type, EventParticipantJoined)
	}

	c2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := c2.ReadMessage(); err == nil {
		t.Error("connection on another test received the broadcast")
	}
}

func TestBroadcastToEmptyTest(t *testing.T) {
	hub := NewHub()
	// No connections attached; must not panic.
	hub.Broadcast(1, Message{Type: EventParticipantLeft})
}

func TestSendAndBroadcastSerializeWrites(t *testing.T) {
	hub := NewHub()
	client := dialHub(t, hub, 1)

	var target *websocket.Conn
	hub.mu.Lock()
	for conn := range hub.tests[1] {
		target = conn
		break
	}
	hub.mu.Unlock()

	// Drain so the server-side writes never block on a full buffer.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := client.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
				return
			}
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// A snapshot send racing a broadcast must not trip gorilla's
	// concurrent-writer check.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			hub.Send(target, Message{Type: EventPresenceSnapshot})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			hub.Broadcast(1, Message{Type: EventParticipantJoined})
		}
	}()
	wg.Wait()

	client.Close()
	<-done
}

func TestSendSingleConnection(t *testing.T) {
	hub := NewHub()
	c1 := dialHub(t, hub, 1)
	c2 := dialHub(t, hub, 1)

	var target *websocket.Conn
	hub.mu.Lock()
	for conn := range hub.tests[1] {
		target = conn
		break
	}
	hub.mu.Unlock()

	hub.Send(target, Message{Type: EventPresenceSnapshot})

	// Exactly one of the two clients gets the snapshot.
	received := 0
	for _, conn := range []*websocket.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if _, _, err := conn.ReadMessage(); err == nil {
			received++
		}
	}
	if received != 1 {
		t.Errorf("snapshot received by %d clients, want 1", received)
	}
}

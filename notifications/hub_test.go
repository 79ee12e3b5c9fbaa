package notifications

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func subscriberCount(h *Hub, channelID string) int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.subscribers[channelID])
}

func waitForSubscriber(t *testing.T, h *Hub, channelID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if subscriberCount(h, channelID) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("subscriber never registered")
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := hub.Subscribe(w, r, "chan1")
		if err != nil {
			t.Errorf("Subscribe failed: %s", err)
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %s", err)
	}
	defer conn.Close()
	waitForSubscriber(t, hub, "chan1")

	txHash := "txhash1"
	hub.Broadcast("chan1", &StatusEvent{
		ChannelID: "chan1",
		Status:    "confirming",
		TxHash:    &txHash,
		Timestamp: time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event StatusEvent
	err = conn.ReadJSON(&event)
	if err != nil {
		t.Fatalf("ReadJSON failed: %s", err)
	}
	if event.ChannelID != "chan1" || event.Status != "confirming" {
		t.Errorf("received event %+v, want chan1/confirming", event)
	}
	if event.TxHash == nil || *event.TxHash != txHash {
		t.Errorf("received tx hash %v, want %s", event.TxHash, txHash)
	}
}

func TestHubBroadcastToOtherChannelIsSilent(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Subscribe(w, r, "chan1")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %s", err)
	}
	defer conn.Close()
	waitForSubscriber(t, hub, "chan1")

	hub.Broadcast("chan2", &StatusEvent{ChannelID: "chan2", Status: "confirmed"})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var event StatusEvent
	err = conn.ReadJSON(&event)
	if err == nil {
		t.Errorf("received another channel's event: %+v", event)
	}
}

func TestHubCloseDropsSubscribers(t *testing.T) {
	hub := NewHub(nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Subscribe(w, r, "chan1")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %s", err)
	}
	defer conn.Close()
	waitForSubscriber(t, hub, "chan1")

	hub.Close()
	if count := subscriberCount(hub, "chan1"); count != 0 {
		t.Errorf("%d subscribers survived Close", count)
	}
}

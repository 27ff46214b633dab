package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T, dir Directory, onMessage func(ClientMessage)) (*httptest.Server, *WebSocketTransport) {
	t.Helper()
	ws := NewWebSocketTransport()
	ws.Greeting = func() any { return SnapshotMessage(dir.Snapshot()) }
	ws.OnMessage = onMessage

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "audiomap_test_total", Help: "test"}))

	srv := httptest.NewServer(NewServer("", dir, ws, reg).Handler())
	t.Cleanup(func() {
		ws.Close()
		srv.Close()
	})
	return srv, ws
}

func TestServer_Devices(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDirectory{snap: testSnapshot()}, nil)

	tests := []struct {
		query      string
		wantStatus int
		wantCount  int
	}{
		{"", http.StatusOK, 3},
		{"?direction=input", http.StatusOK, 2},
		{"?direction=output", http.StatusOK, 2},
		{"?direction=input_output", http.StatusOK, 1},
		{"?direction=sideways", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/devices" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var m Message
			if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
				t.Fatal(err)
			}
			if m.Snapshot == nil || len(m.Snapshot.Devices) != tt.wantCount {
				t.Errorf("got %+v, want %d devices", m.Snapshot, tt.wantCount)
			}
		})
	}
}

func TestServer_Refresh(t *testing.T) {
	dir := &fakeDirectory{snap: testSnapshot()}
	srv, _ := newTestServer(t, dir, nil)

	resp, err := http.Post(srv.URL+"/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var ok refreshResponse
	json.NewDecoder(resp.Body).Decode(&ok)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || ok.Generation != 4 || ok.Devices != 3 {
		t.Errorf("refresh = %d %+v", resp.StatusCode, ok)
	}

	dir.setErr(errTest)
	resp, err = http.Post(srv.URL+"/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var failed refreshResponse
	json.NewDecoder(resp.Body).Decode(&failed)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || failed.Generation != 4 || failed.Error == "" {
		t.Errorf("failed refresh = %d %+v", resp.StatusCode, failed)
	}

	resp, err = http.Get(srv.URL + "/refresh")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /refresh status = %d", resp.StatusCode)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDirectory{}, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "audiomap_test_total") {
		t.Errorf("metrics output missing registered counter:\n%s", body)
	}
}

func TestWebSocket_GreetBroadcastAndRefresh(t *testing.T) {
	dir := &fakeDirectory{snap: testSnapshot()}
	requested := make(chan ClientMessage, 1)
	srv, ws := newTestServer(t, dir, func(m ClientMessage) { requested <- m })

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var greet Message
	if err := conn.ReadJSON(&greet); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if greet.Type != TypeSnapshot || greet.Generation != 3 {
		t.Errorf("greeting = %+v", greet)
	}

	if err := ws.Send(FailureMessage(3, "boom")); err != nil {
		t.Fatal(err)
	}
	var failed Message
	if err := conn.ReadJSON(&failed); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if failed.Type != TypeRefreshFailed || failed.Error != "boom" {
		t.Errorf("broadcast = %+v", failed)
	}

	if err := conn.WriteJSON(ClientMessage{Type: "refresh"}); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-requested:
		if m.Type != "refresh" {
			t.Errorf("client message = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client message not delivered")
	}

	if ws.Clients() != 1 {
		t.Errorf("Clients() = %d, want 1", ws.Clients())
	}
}

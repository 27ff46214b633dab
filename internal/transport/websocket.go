package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	applog "audiomap/internal/log"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// ClientMessage is what WebSocket clients may send, e.g. {"type":"refresh"}.
type ClientMessage struct {
	Type string `json:"type"`
}

// WebSocketTransport broadcasts messages to every connected WebSocket client.
// New clients first receive whatever Greeting returns.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once

	// Greeting returns the message sent to a client right after it connects.
	Greeting func() any
	// OnMessage handles messages read from clients.
	OnMessage func(ClientMessage)
}

// NewWebSocketTransport creates a WebSocketTransport and starts its broadcast
// loop. Mount it on a mux with Handler.
func NewWebSocketTransport() *WebSocketTransport {
	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 64),
		done:      make(chan struct{}),
	}
	go wst.handleBroadcasts()
	return wst
}

// Handler upgrades requests to WebSocket connections.
func (wst *WebSocketTransport) Handler() http.Handler {
	return http.HandlerFunc(wst.handleWebSocket)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("websocket: upgrade error: %v", err)
		return
	}

	// Greet under the lock so the broadcast loop cannot write concurrently.
	wst.clientsMu.Lock()
	if wst.Greeting != nil {
		if err := wst.write(conn, wst.Greeting()); err != nil {
			wst.clientsMu.Unlock()
			applog.Warnf("websocket: greeting failed: %v", err)
			conn.Close()
			return
		}
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("websocket: client %s connected, total: %d", conn.RemoteAddr(), total)

	go wst.readLoop(conn)
}

func (wst *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer wst.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			applog.Debugf("websocket: ignoring malformed client message: %v", err)
			continue
		}
		if wst.OnMessage != nil {
			wst.OnMessage(msg)
		}
	}
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	conn.Close()
	if ok {
		applog.Infof("websocket: client disconnected, total: %d", total)
	}
}

func (wst *WebSocketTransport) write(conn *websocket.Conn, data any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(data)
}

// handleBroadcasts sends messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				if err := wst.write(client, data); err != nil {
					applog.Warnf("websocket: error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		case <-wst.done:
			return
		}
	}
}

// Send queues data for broadcast. Messages are dropped while the queue is
// full.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case wst.broadcast <- data:
	default:
		applog.Warnf("websocket: broadcast queue full, dropping %T", data)
	}
	return nil
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Close disconnects every client and stops the broadcast loop.
func (wst *WebSocketTransport) Close() error {
	wst.closeOnce.Do(func() { close(wst.done) })

	wst.clientsMu.Lock()
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientsMu.Unlock()
	return nil
}

var _ Transport = (*WebSocketTransport)(nil)

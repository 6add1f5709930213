package server

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketConn is the interface for WebSocket connection operations.
type WebSocketConn interface {
	io.Closer
	WriteJSON(v any) error
	ReadJSON(v any) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin accepts requests without an Origin header, from the host
// that served the request, and from loopback or private addresses.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected websocket origin", "origin", origin, "error", err)
		return false
	}
	if originAllowed(u.Hostname(), r.Host) {
		return true
	}
	slog.Warn("rejected websocket origin", "origin", origin)
	return false
}

func originAllowed(host, requestHost string) bool {
	if host == "localhost" {
		return true
	}
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if strings.EqualFold(host, requestHost) {
		return true
	}
	addr, err := netip.ParseAddr(host)
	return err == nil && (addr.IsLoopback() || addr.IsPrivate())
}

// UpgradeConnection upgrades an HTTP connection to WebSocket.
func UpgradeConnection(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

// StatusNotifier fans status change signals out to connected clients.
// It is safe for concurrent use.
type StatusNotifier struct {
	mu      sync.Mutex
	clients map[chan struct{}]struct{}
}

// NewStatusNotifier returns a notifier without subscribers.
func NewStatusNotifier() *StatusNotifier {
	return &StatusNotifier{clients: make(map[chan struct{}]struct{})}
}

// Subscribe registers a client. The returned channel receives a signal
// after every Notify; signals coalesce while the client is busy.
func (n *StatusNotifier) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.clients[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a client registered with Subscribe.
func (n *StatusNotifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	delete(n.clients, ch)
	n.mu.Unlock()
}

// Notify signals every subscribed client without blocking.
func (n *StatusNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.clients {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

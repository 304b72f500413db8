package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced upstream of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// UpgradeHandler upgrades GET /ws requests and hands the connection to the
// hub. The client stays unbound until a successful join event.
func UpgradeHandler(hub *Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "WebSocket endpoint only accepts GET requests", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}

		select {
		case hub.register <- NewClient(conn, hub, log):
		case <-hub.done:
			_ = conn.Close()
		}
	}
}

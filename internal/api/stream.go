package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPushInterval = 2 * time.Second
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     isLoopbackOrigin,
}

// isLoopbackOrigin admits requests without an Origin header (non-browser
// clients) and browser pages served from localhost.
func isLoopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// statusStreamHandler pushes the daemon snapshot to a websocket client at a
// fixed cadence until the client goes away.
func statusStreamHandler(cfg ServerConfig) http.HandlerFunc {
	interval := cfg.PushInterval
	if interval <= 0 {
		interval = defaultPushInterval
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		// Reader goroutine: handles pongs and notices the client closing.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		send := func() bool {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(cfg.Daemon.Status()); err != nil {
				cfg.Logger.Debug("websocket write failed", "error", err)
				return false
			}
			return true
		}

		if !send() {
			return
		}
		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if !send() {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

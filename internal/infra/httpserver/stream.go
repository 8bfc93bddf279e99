package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// GET /v1/{user}/scans/current/stream
// Upgrades to a websocket and pushes one JSON snapshot per progress change,
// starting with the current one. The stream stays open across scans until
// the client goes away.
func (r *Router) handleStream(w http.ResponseWriter, req *http.Request) {
	user := chi.URLParam(req, "user")

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("upgrading to websocket", "user", user, "error", err)
		return
	}
	defer conn.Close()

	snaps, release := r.scansSvc.Subscribe(user)
	defer release()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	// reader: only needed to notice the client closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				r.logger.Debug("progress stream closed", "user", user, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log-sentinel/internal/feed"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	sseKeepAlive   = 15 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

func (h *Handlers) StreamLogsSSE(w http.ResponseWriter, r *http.Request) {
	cur := h.feed.SubscribeLogs()
	defer cur.Close()
	serveSSE(h, w, r, cur, feed.ViewLogs)
}

func (h *Handlers) StreamAlertsSSE(w http.ResponseWriter, r *http.Request) {
	cur := h.feed.SubscribeAlerts()
	defer cur.Close()
	serveSSE(h, w, r, cur, feed.ViewAlerts)
}

func (h *Handlers) StreamLogsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	cur := h.feed.SubscribeLogs()
	defer cur.Close()
	serveWS(h, conn, r, cur, feed.ViewLogs)
}

func (h *Handlers) StreamAlertsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	cur := h.feed.SubscribeAlerts()
	defer cur.Close()
	serveWS(h, conn, r, cur, feed.ViewAlerts)
}

func (h *Handlers) subscriberLogger(r *http.Request, view, transport string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"subscriber": uuid.NewString(),
		"view":       view,
		"transport":  transport,
		"remote":     r.RemoteAddr,
	})
}

// serveSSE writes one "data:" event per item until the client goes away.
// Only items published after the subscription are sent.
func serveSSE[T any](h *Handlers, w http.ResponseWriter, r *http.Request, cur *feed.Cursor[T], view string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	log := h.subscriberLogger(r, view, "sse")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()
	log.Debug("Stream subscriber attached")
	defer log.Debug("Stream subscriber detached")

	ctx := r.Context()
	for {
		waitCtx, cancel := context.WithTimeout(ctx, sseKeepAlive)
		items, _, err := cur.Next(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				flusher.Flush()
				continue
			}
			return
		}

		for _, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				log.Errorf("Failed to encode stream item: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

// serveWS sends a "connected" hello followed by one JSON message per item.
// Pings keep the connection alive; a failed read ends the stream.
func serveWS[T any](h *Handlers, conn *websocket.Conn, r *http.Request, cur *feed.Cursor[T], view string) {
	log := h.subscriberLogger(r, view, "websocket")
	defer func() {
		log.Debug("WebSocket connection closed")
		conn.Close()
	}()

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(map[string]string{"type": "connected", "message": "WebSocket connection established"}); err != nil {
		log.Errorf("Failed to send initial message: %v", err)
		return
	}
	log.Debug("WebSocket connection established")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read messages in background to detect connection close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send ping to keep connection alive
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					log.Debugf("Ping failed: %v", err)
					cancel()
					return
				}
			}
		}
	}()

	for {
		items, _, err := cur.Next(ctx)
		if err != nil {
			return
		}
		for _, item := range items {
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(item); err != nil {
				log.Debugf("WebSocket write error: %v", err)
				return
			}
		}
	}
}

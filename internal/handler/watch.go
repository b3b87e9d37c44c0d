package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/manfullwel/ska/internal/event"
)

// WatchHandler streams pipeline events to WebSocket clients. It
// subscribes to the event bus and fans each event out to every
// connected client.
type WatchHandler struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[chan event.DomainEvent]struct{}
}

// NewWatchHandler creates the handler. log may be nil.
func NewWatchHandler(log *zap.Logger) *WatchHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WatchHandler{
		log:     log,
		clients: make(map[chan event.DomainEvent]struct{}),
	}
}

// HandleEvent implements eventbus.Handler. Slow clients drop events
// rather than stalling the bus.
func (h *WatchHandler) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// ServeHTTP upgrades to WebSocket and streams events until the client
// disconnects.
func (h *WatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ch := make(chan event.DomainEvent, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	ctx := r.Context()

	// Reads are discarded; the read loop just notices disconnects.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt := <-ch:
			if err := wsjson.Write(ctx, conn, evt); err != nil {
				if websocket.CloseStatus(err) == -1 {
					h.log.Warn("websocket write failed", zap.Error(err))
				}
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}

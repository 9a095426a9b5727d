package gameserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/resolution"
)

// watcherBuffer is how many undelivered records a watcher may lag behind
// before it is dropped.
const watcherBuffer = 32

// Hub pushes committed resolution records to websocket watchers of each
// battle. It implements resolution.Notifier.
type Hub struct {
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
	closed   bool
}

type watcher struct {
	battleID string
	conn     *websocket.Conn
	send     chan []byte
	once     sync.Once
}

var _ resolution.Notifier = (*Hub)(nil)

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil; writeTimeout must be positive.
func NewHub(logger *zap.Logger, writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		panic("gameserver.NewHub: writeTimeout must be positive")
	}
	return &Hub{
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// Handler routes GET /battles/{id}/watch to the hub.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /battles/{id}/watch", h.serveWatch)
	return mux
}

func (h *Hub) serveWatch(w http.ResponseWriter, r *http.Request) {
	battleID := r.PathValue("id")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	wt := &watcher{battleID: battleID, conn: conn, send: make(chan []byte, watcherBuffer)}
	if !h.register(wt) {
		_ = conn.Close()
		return
	}
	h.logger.Debug("watcher joined", zap.String("battle_id", battleID))
	go h.writePump(wt)
	go h.readPump(wt)
}

func (h *Hub) register(wt *watcher) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.watchers[wt.battleID]
	if !ok {
		set = make(map[*watcher]struct{})
		h.watchers[wt.battleID] = set
	}
	set[wt] = struct{}{}
	return true
}

// unregister removes wt and closes its send queue exactly once.
func (h *Hub) unregister(wt *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(wt)
}

func (h *Hub) removeLocked(wt *watcher) {
	if set, ok := h.watchers[wt.battleID]; ok {
		delete(set, wt)
		if len(set) == 0 {
			delete(h.watchers, wt.battleID)
		}
	}
	wt.once.Do(func() { close(wt.send) })
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(wt *watcher) {
	defer func() {
		h.unregister(wt)
		_ = wt.conn.Close()
	}()
	for {
		if _, _, err := wt.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(wt *watcher) {
	defer wt.conn.Close()
	for msg := range wt.send {
		_ = wt.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := wt.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("watcher write failed", zap.String("battle_id", wt.battleID), zap.Error(err))
			return
		}
	}
	_ = wt.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	_ = wt.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Publish implements resolution.Notifier. Watchers whose queue is full are
// disconnected rather than blocking the commit path.
func (h *Hub) Publish(_ context.Context, rec resolution.Record) {
	s, err := encode(rec)
	if err != nil {
		h.logger.Error("encoding record for watchers", zap.Error(err))
		return
	}
	msg, err := marshalJSON(s)
	if err != nil {
		h.logger.Error("encoding record for watchers", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for wt := range h.watchers[rec.BattleID] {
		select {
		case wt.send <- msg:
		default:
			h.logger.Warn("dropping slow watcher", zap.String("battle_id", rec.BattleID))
			h.removeLocked(wt)
		}
	}
}

// Watchers reports how many watchers are attached to battleID.
func (h *Hub) Watchers(battleID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[battleID])
}

// Close disconnects every watcher and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.watchers {
		for wt := range set {
			h.removeLocked(wt)
		}
	}
}

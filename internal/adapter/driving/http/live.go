package httphandler

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = 30 * time.Second // must be less than livePongWait
)

// upgrader keeps gorilla's default same-origin check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 << 10,
}

// LiveFrame is one message pushed on the live socket.
type LiveFrame struct {
	Type     string            `json:"type"`
	Messages []MessageResponse `json:"messages"`
}

// Live upgrades to a websocket and pushes the displayed list on connect and
// after every change. Updates that arrive faster than the client reads
// coalesce to the latest list. The socket is closed when the feed is
// unmounted.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	feed := h.router.Current()
	if feed == nil {
		writeError(w, http.StatusUnauthorized, model.ErrFeedNotMounted.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	socketID := uuid.NewString()
	me := feed.Identity().DisplayName()
	h.logger.Info("live socket opened", "socket", socketID, "user", me)
	defer h.logger.Info("live socket closed", "socket", socketID)

	var pushMu sync.Mutex
	updates := make(chan []model.Message, 1)
	push := func(msgs []model.Message) {
		pushMu.Lock()
		defer pushMu.Unlock()
		select {
		case <-updates:
		default:
		}
		updates <- msgs
	}

	unwatch := feed.Watch(push)
	defer unwatch()
	push(feed.Messages())

	// The read loop only detects the client going away.
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-feed.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "feed closed"),
				time.Now().Add(liveWriteWait))
			return
		case msgs := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			frame := LiveFrame{Type: "messages", Messages: toMessageResponses(msgs, me)}
			if err := conn.WriteJSON(frame); err != nil {
				h.logger.Debug("live socket write failed", "socket", socketID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

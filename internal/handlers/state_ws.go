package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/animator/internal/models"
)

const (
	stateWSReadLimit  = 4 << 10
	stateWSPongWait   = 60 * time.Second
	stateWSPingPeriod = stateWSPongWait * 9 / 10
)

var stateWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// stateWSOutMessage is the JSON shape sent to the client.
type stateWSOutMessage struct {
	Type  string               `json:"type"`
	State models.StateResponse `json:"state"`
}

// StateWS handles GET /v1/ws: streams session state, including the rotating
// loading message, until the client disconnects.
func (h *Handler) StateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := stateWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("state ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.session.Subscribe()
	defer unsubscribe()

	// Clients send nothing but control frames; reading detects the close.
	closed := make(chan struct{})
	conn.SetReadLimit(stateWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(stateWSPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(stateWSPongWait))
		return nil
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Msg("state ws read")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(h.session.MessagePeriod())
	defer ticker.Stop()
	ping := time.NewTicker(stateWSPingPeriod)
	defer ping.Stop()

	var lastMessage string
	for {
		select {
		case <-closed:
			return
		case snap, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			state := toStateResponse(snap)
			lastMessage = state.StatusMessage
			if err := writeWSJSON(conn, stateWSOutMessage{Type: "state", State: state}); err != nil {
				log.Debug().Err(err).Msg("state ws write")
				return
			}
		case <-ticker.C:
			state := toStateResponse(h.session.Snapshot())
			if state.StatusMessage == lastMessage {
				continue
			}
			lastMessage = state.StatusMessage
			if err := writeWSJSON(conn, stateWSOutMessage{Type: "state", State: state}); err != nil {
				log.Debug().Err(err).Msg("state ws write")
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}

package server

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleLogStatus streams progress events as JSON text frames. The optional
// task_id query parameter narrows the stream to one job.
func (s *Server) handleLogStatus(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so a client that uploads
	// right after connecting sees every event of its job.
	sub := s.deps.Hub.Subscribe(s.opts.Group)
	defer sub.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()

	jobID := r.URL.Query().Get("task_id")
	log := zlog.With().Str("component", "ws").Str("remote", r.RemoteAddr).Str("job_id", jobID).Logger()
	log.Debug().Msg("websocket connected")

	// The read side only handles control frames and notices disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
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
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return

		case <-closed:
			log.Debug().Msg("websocket disconnected")
			return

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case ev, ok := <-sub.Events():
			if !ok {
				log.Warn().Msg("event subscription ended")
				return
			}
			if jobID != "" && ev.JobID != jobID {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Msg("encode event")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

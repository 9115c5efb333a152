package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Stream timing
const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSweepStream streams progress events of ?job=<id> and closes after
// the final done/failed event.
func (s *Server) handleSweepStream(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job")
	events, cancel, ok := s.jobs.subscribe(jobID)
	if !ok {
		s.metrics.RecordRequest("GET /ws/sweeps", "404")
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown job"})
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	s.metrics.RecordRequest("GET /ws/sweeps", "101")

	if s.metrics != nil {
		s.metrics.WSClientsConnected.Inc()
		defer s.metrics.WSClientsConnected.Dec()
	}

	// Reads only detect a closed client.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug().Err(err).Str("job_id", jobID).Msg("stream write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

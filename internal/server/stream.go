package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flo-mic/stackdash/internal/api"
	"github.com/flo-mic/stackdash/internal/run"
)

const (
	writeWait = 10 * time.Second
	closeWait = 5 * time.Second
)

func newRunID() string {
	return uuid.NewString()
}

// stream drives src into send and logs how the run ended.
func (s *Server) stream(ctx context.Context, runID, mode, transport string, src run.Source, send run.SinkFunc) {
	if mode == "" {
		mode = run.ModeScript
	}
	logger := s.logger.With("run_id", runID, "mode", mode, "transport", transport)
	logger.Info("run started")

	summary, err := run.Stream(ctx, src, send, s.runOpts)
	switch {
	case err == nil:
		logger.Info("run finished", "stacks", summary.Stacks, "failed", summary.Failed)
	case errors.Is(err, context.Canceled):
		logger.Info("run cancelled")
	default:
		logger.Warn("run aborted", "err", err)
	}
}

// handleRunWS streams a run over a websocket, one JSON text message per
// event, then a normal close frame. Refusals happen before the upgrade so
// the client sees a plain HTTP status.
func (s *Server) handleRunWS(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	src, err := s.starter.Start(mode, s.ents)
	if err != nil {
		startError(w, err)
		return
	}

	runID := newRunID()
	conn, err := s.upgrader.Upgrade(w, r, http.Header{"X-Run-ID": {runID}})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends data; a read error means it went away.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(1024)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	var completed bool
	s.stream(ctx, runID, mode, "websocket", src, func(ev api.Event) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
		completed = ev.Terminal()
		return nil
	})

	if completed {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run complete")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.SetReadDeadline(time.Now().Add(closeWait))
	} else {
		conn.Close()
	}
	<-readerDone
}

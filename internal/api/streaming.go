package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kdimtricp/repcam/internal/pose"
)

const (
	wsWriteWait = 5 * time.Second
	wsPongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// EventsHandler streams session snapshots as server-sent events. The
// current snapshot is sent first; a "closed" event ends the stream when the
// session is deleted.
func (app *App) EventsHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := writeEvent(w, flusher, "stats", s.Snapshot()); err != nil {
		return
	}

	clientGone := r.Context().Done()
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				fmt.Fprintf(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if err := writeEvent(w, flusher, "stats", snap); err != nil {
				log.Printf("[API] SSE write for session %s failed: %v", s.ID, err)
				return
			}
		case <-clientGone:
			return
		}
	}
}

type wsError struct {
	Error string `json:"error"`
}

// FramesSocketHandler takes one frame per websocket message and answers each
// with the resulting snapshot, or an error message when the frame was
// rejected.
func (app *App) FramesSocketHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[API] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(app.maxFrameSize())
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var req pose.FrameMessage
		if err := conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				if werr := writeSocket(conn, wsError{Error: "invalid frame: " + err.Error()}); werr != nil {
					return
				}
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[API] websocket for session %s closed: %v", s.ID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var reply interface{}
		snap, err := s.ProcessFrame(req.Frame())
		if err != nil {
			reply = wsError{Error: err.Error()}
		} else {
			reply = snap
		}
		if err := writeSocket(conn, reply); err != nil {
			return
		}
	}
}

func writeSocket(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

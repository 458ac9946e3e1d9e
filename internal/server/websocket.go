package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	maxViewerLen   = 128
)

// checkOrigin accepts same-host pages and the configured API origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	origins := s.config.API.GetCORSOrigins()
	return slices.Contains(origins, "*") || slices.Contains(origins, origin)
}

// serveWebSocket connects a browser to a new session on the lesson named
// by the lesson query parameter. The optional viewer parameter keys saved
// progress.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lesson, err := s.Lesson(q.Get("lesson"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	viewer := q.Get("viewer")
	if len(viewer) > maxViewerLen {
		writeError(w, http.StatusBadRequest, "viewer id too long")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := newSession(s, lesson, viewer)
	s.registerSession(sess)
	defer func() {
		s.unregisterSession(sess)
		sess.finish()
		_ = conn.Close()
	}()

	go sess.writeLoop(conn)

	if err := sess.start(); err != nil {
		sess.log.Error().Err(err).Msg("failed to render first step")
		sess.sendError(err.Error())
	}
	sess.readLoop(conn)
}

func (s *Session) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.log.Debug().Err(err).Msg("connection closed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError("invalid message: " + err.Error())
			continue
		}
		s.log.Trace().Str("action", msg.Action).Str("id", msg.ID).Msg("client message")
		if err := s.Handle(msg); err != nil {
			s.log.Debug().Err(err).Str("action", msg.Action).Msg("message rejected")
			s.sendError(err.Error())
		}

		select {
		case <-s.done:
			return
		default:
		}
	}
}

func (s *Session) writeLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug().Err(err).Msg("write failed")
				s.Close()
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				_ = conn.Close()
				return
			}
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		}
	}
}

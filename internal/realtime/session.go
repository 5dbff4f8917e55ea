package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSlowConsumer  = errors.New("send queue full")
)

type SessionConfig struct {
	SendBuffer      int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageBytes int64
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SendBuffer:      256,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageBytes: 64 << 10,
	}
}

// Session is one live WebSocket connection. All writes go through a single
// queue drained by one goroutine, so frames leave in the order they were
// queued.
type Session struct {
	id    string
	label string
	conn  *websocket.Conn
	cfg   SessionConfig
	log   *logrus.Entry

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, label string, cfg SessionConfig, log *logrus.Entry) *Session {
	id := uuid.NewString()
	return &Session{
		id:    id,
		label: label,
		conn:  conn,
		cfg:   cfg,
		log:   log.WithFields(logrus.Fields{"session": id, "user": label}),
		send:  make(chan []byte, cfg.SendBuffer),
		done:  make(chan struct{}),
	}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Label() string { return s.label }

// Deliver queues msg without blocking. A full queue closes the session: the
// peer has missed an event and can only recover by reconnecting and refetching.
func (s *Session) Deliver(msg []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		// closing writes a close frame; keep that off the broadcaster's goroutine
		go s.Close()
		return ErrSlowConsumer
	}
}

func (s *Session) reply(m Message) {
	payload, err := encode(m)
	if err != nil {
		s.log.WithError(err).Error("encode reply")
		return
	}
	if err := s.Deliver(payload); err != nil {
		s.log.WithError(err).Debug("reply dropped")
	}
}

func (s *Session) replyError(projectID, text string) {
	s.reply(Message{Type: TypeError, ProjectID: projectID, Error: text})
}

// Close is safe to call more than once and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		deadline := time.Now().Add(s.cfg.WriteWait)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
}

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.WithError(&TransportError{SessionID: s.id, Err: err}).
					WithField("error_class", "transport").Warn("write failed")
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.WithError(err).Debug("ping failed")
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// readPump blocks until the connection fails, the peer goes quiet for longer
// than PongWait, or the session is closed.
func (s *Session) readPump(handle func(Message)) {
	s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Info("connection lost")
			}
			return
		}
		// any inbound frame proves liveness
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.replyError("", "malformed message")
			continue
		}
		handle(msg)
	}
}

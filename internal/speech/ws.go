package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/neboloop/hitomi/internal/logging"
)

const (
	wsWriteWait = 5 * time.Second
	wsPongWait  = 60 * time.Second
)

// wsEvent is one JSON text frame from the recognizer service.
type wsEvent struct {
	Type string `json:"type"` // "ready", "partial", "end", "final", "error"
	Text string `json:"text,omitempty"`
	Code string `json:"code,omitempty"`
}

// wsControl is sent to the service to open or abort a session.
type wsControl struct {
	Type     string `json:"type"` // "start", "cancel"
	Language string `json:"language,omitempty"`
	Partial  bool   `json:"partial"`
}

// WSRecognizer is a Recognizer backed by a websocket speech service. Each
// session is its own connection.
type WSRecognizer struct {
	URL      string
	Language string
	Header   http.Header
	Dialer   *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	destroyed bool
}

// NewWSRecognizer returns a recognizer for the service at url.
func NewWSRecognizer(url, language string) *WSRecognizer {
	return &WSRecognizer{URL: url, Language: language, Dialer: websocket.DefaultDialer}
}

// Start dials the service and streams its events. It never blocks the
// caller; dial failures arrive as a network error event.
func (r *WSRecognizer) Start(ev Events) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ErrRecognizerUnavailable
	}
	r.closeLocked()
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(ctx, ev)
	return nil
}

func (r *WSRecognizer) run(ctx context.Context, ev Events) {
	dialer := r.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, r.URL, r.Header)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warnf("[speech-ws] dial %s: %v", r.URL, err)
			ev.Error(ErrorNetwork)
		}
		return
	}

	r.mu.Lock()
	if ctx.Err() != nil {
		r.mu.Unlock()
		conn.Close()
		return
	}
	r.conn = conn
	r.mu.Unlock()

	if err := r.send(conn, wsControl{Type: "start", Language: r.Language, Partial: true}); err != nil {
		ev.Error(ErrorNetwork)
		return
	}
	r.readPump(ctx, conn, ev)
}

// readPump delivers events until the session ends or the connection drops.
func (r *WSRecognizer) readPump(ctx context.Context, conn *websocket.Conn, ev Events) {
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warnf("[speech-ws] read error: %v", err)
			}
			ev.Error(ErrorNetwork)
			return
		}
		var msg wsEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Debugf("[speech-ws] bad frame: %v", err)
			continue
		}
		switch msg.Type {
		case "ready":
			ev.Ready()
		case "partial":
			ev.Partial(msg.Text)
		case "end":
			ev.End()
		case "final":
			ev.Final(msg.Text)
			return
		case "error":
			ev.Error(ParseErrorCode(msg.Code))
			return
		}
	}
}

func (r *WSRecognizer) send(conn *websocket.Conn, msg wsControl) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Cancel aborts the current session.
func (r *WSRecognizer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

// Destroy cancels and refuses further sessions.
func (r *WSRecognizer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
	r.destroyed = true
}

func (r *WSRecognizer) closeLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.conn != nil {
		r.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		data, _ := json.Marshal(wsControl{Type: "cancel"})
		_ = r.conn.WriteMessage(websocket.TextMessage, data)
		r.conn.Close()
		r.conn = nil
	}
}

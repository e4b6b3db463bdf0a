package pitwall

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"justapengu.in/pitwall/internal/racesim"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

var ErrViewerTooSlow = errors.New("viewer send buffer is full")

// Viewer is a websocket connection watching a session. Messages are queued and written by a
// dedicated goroutine so that the tick loop never waits on the network.
type Viewer struct {
	conn   *websocket.Conn
	logger Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewViewer(conn *websocket.Conn, buffer int, logger Logger) *Viewer {
	return &Viewer{
		conn:   conn,
		logger: logger.WithField("viewer", uuid.New().String()),
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (v *Viewer) OnSession(descriptor racesim.SessionDescriptor) error {
	return v.enqueue(descriptor)
}

func (v *Viewer) OnTick(snapshot *racesim.RaceSnapshot) error {
	return v.enqueue(snapshot)
}

func (v *Viewer) enqueue(message interface{}) error {
	data, err := json.Marshal(message)

	if err != nil {
		return errors.Wrap(err, "could not marshal viewer message")
	}

	select {
	case <-v.done:
		return racesim.ErrObserverClosed
	default:
	}

	select {
	case v.send <- data:
		return nil
	default:
		return ErrViewerTooSlow
	}
}

// Close stops the viewer. The write pump says goodbye to the client and closes the connection.
func (v *Viewer) Close() error {
	v.closeOnce.Do(func() {
		close(v.done)
	})

	return nil
}

// writePump writes queued messages and keeps the connection alive with pings. It owns closing
// the connection.
func (v *Viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = v.Close()
		_ = v.conn.Close()
	}()

	for {
		select {
		case <-v.done:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-v.send:
			if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				v.logger.WithError(err).Debug("Could not write to viewer")
				return
			}
		case <-ticker.C:
			if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump blocks until the viewer goes away. Viewers do not send anything meaningful, so
// incoming messages are discarded.
func (v *Viewer) readPump() {
	v.conn.SetReadLimit(maxMessageSize)
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				v.logger.WithError(err).Debug("Viewer connection closed unexpectedly")
			}

			return
		}
	}
}

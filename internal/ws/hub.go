// Package ws fans relay events out to WebSocket subscribers such as
// `relayctl watch`.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 3 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
	clientBuf  = 32
)

// Broadcaster is the publishing side of the hub.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Discard is a Broadcaster that drops everything.
type Discard struct{}

func (Discard) BroadcastJSON(any) {}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the subscriber set. Each subscriber has its own write goroutine
// and buffer; one that falls behind is disconnected instead of stalling
// the others.
type Hub struct {
	subs      map[*subscriber]struct{}
	join      chan *subscriber
	leave     chan *subscriber
	broadcast chan []byte
	done      chan struct{}
	upgrader  websocket.Upgrader
	log       logrus.FieldLogger

	connected atomic.Int64
	dropped   atomic.Uint64
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		subs:      make(map[*subscriber]struct{}),
		join:      make(chan *subscriber),
		leave:     make(chan *subscriber),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Run owns the subscriber set until ctx is cancelled, then disconnects
// everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for s := range h.subs {
				h.remove(s)
			}
			return

		case s := <-h.join:
			h.subs[s] = struct{}{}
			h.connected.Store(int64(len(h.subs)))
			h.log.WithField("remote", s.conn.RemoteAddr().String()).Debug("ws subscriber joined")

		case s := <-h.leave:
			h.remove(s)

		case msg := <-h.broadcast:
			for s := range h.subs {
				select {
				case s.send <- msg:
				default:
					h.log.WithField("remote", s.conn.RemoteAddr().String()).Debug("ws subscriber too slow, disconnecting")
					h.remove(s)
				}
			}
		}
	}
}

func (h *Hub) remove(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	h.connected.Store(int64(len(h.subs)))
	close(s.send)
}

// Handler upgrades the request and attaches the connection to the hub.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.WithError(err).Debug("ws upgrade failed")
			return
		}

		s := &subscriber{conn: conn, send: make(chan []byte, clientBuf)}
		select {
		case h.join <- s:
		case <-h.done:
			_ = conn.Close()
			return
		}

		go h.writeLoop(s)
		go h.readLoop(s)
	})
}

// writeLoop is the only goroutine that writes to s.conn.
func (h *Hub) writeLoop(s *subscriber) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay stopping"))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames and keeps the read deadline alive on
// pongs. Any read error detaches the subscriber.
func (h *Hub) readLoop(s *subscriber) {
	defer func() {
		select {
		case h.leave <- s:
		case <-h.done:
		}
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// BroadcastJSON queues v for every subscriber. It never blocks: when the
// hub's queue is full the message is counted and discarded.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Warn("ws marshal failed")
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.dropped.Add(1)
	}
}

// Clients returns the number of attached subscribers.
func (h *Hub) Clients() int { return int(h.connected.Load()) }

// Dropped returns how many broadcasts were discarded.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

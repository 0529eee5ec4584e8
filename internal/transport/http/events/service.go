// Package events streams engine lifecycle events to websocket clients, so a
// kiosk UI can show scan and chip progress live.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/logging"
	httptransport "github.com/abdrou13-pixel/ReadCard/internal/transport/http"
)

const (
	writeWait      = 5 * time.Second
	sendBufferSize = 64
)

// frame is the wire format of one streamed event.
type frame struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
	TS    int64       `json:"ts"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Service fans engine events out to connected websocket clients.
type Service struct {
	eng    engine.Engine
	logger *logging.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	handlers map[string]func(interface{})
}

// NewService subscribes to every engine topic and starts fanning out.
func NewService(eng engine.Engine, logger *logging.Logger) *Service {
	s := &Service{
		eng:    eng,
		logger: logger,
		upgrader: websocket.Upgrader{
			// Local service; the browser origin is whatever serves the UI.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:  make(map[*client]struct{}),
		handlers: make(map[string]func(interface{})),
	}

	bus := eng.Bus()
	for _, topic := range engine.Topics() {
		topic := topic
		h := func(payload interface{}) { s.broadcast(topic, payload) }
		if err := bus.SubscribeAsync(topic, h); err != nil {
			logger.WarnTag("[EVENTS]", "subscribe %s: %v", topic, err)
			continue
		}
		s.handlers[topic] = h
	}
	return s
}

// RegisterRoutes mounts the websocket endpoint.
func (s *Service) RegisterRoutes(router *httptransport.Router) {
	router.Engine.GET("/events", s.handleWS)
	router.API.GET("/events", s.handleWS)
}

func (s *Service) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WarnTag("[EVENTS]", "websocket upgrade: %v", err)
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	s.mu.Lock()
	s.clients[cl] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.InfoTag("[EVENTS]", "client connected (%d active)", count)

	go s.writeLoop(cl)
	s.readLoop(cl)
}

func (s *Service) writeLoop(cl *client) {
	for msg := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
	cl.conn.Close()
}

// readLoop drains the connection until the client goes away; inbound frames
// are ignored, the stream is one-way.
func (s *Service) readLoop(cl *client) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(cl)
}

func (s *Service) drop(cl *client) {
	s.mu.Lock()
	if _, ok := s.clients[cl]; ok {
		delete(s.clients, cl)
		close(cl.send)
	}
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.InfoTag("[EVENTS]", "client disconnected (%d active)", count)
}

func (s *Service) broadcast(topic string, payload interface{}) {
	msg, err := sonic.Marshal(frame{
		Topic: topic,
		Data:  payload,
		TS:    time.Now().UnixMilli(),
	})
	if err != nil {
		s.logger.WarnTag("[EVENTS]", "marshal %s: %v", topic, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		select {
		case cl.send <- msg:
		default:
			// Slow consumer; drop the frame rather than stall the bus.
		}
	}
}

// Close detaches from the bus and disconnects all clients.
func (s *Service) Close() {
	bus := s.eng.Bus()
	for topic, h := range s.handlers {
		bus.Unsubscribe(topic, h)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		close(cl.send)
		delete(s.clients, cl)
	}
}

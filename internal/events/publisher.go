package events

import (
	"time"

	"zzik-backend/pkg/logger"
	"go.uber.org/zap"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Event is one fire-and-forget observability message. Delivery is best
// effort: a failure here must never affect the transaction that emitted it.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	EmittedAt time.Time   `json:"emitted_at"`
}

type RunStateChange struct {
	RunID     string `json:"run_id"`
	MissionID string `json:"mission_id"`
	UserID    int64  `json:"user_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type Publisher interface {
	Publish(event Event)
}

// WsPublisher ships events to the ops sink over a websocket. Events are
// queued on a buffered channel and dropped when the queue is full.
type WsPublisher struct {
	url   string
	queue chan Event
}

func NewWsPublisher(url string) *WsPublisher {
	p := &WsPublisher{
		url:   url,
		queue: make(chan Event, 256),
	}
	go p.writeLoop()
	return p
}

func (p *WsPublisher) Publish(event Event) {
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	select {
	case p.queue <- event:
	default:
		logger.Logger().Warn("event queue full, dropping event", zap.String("type", event.Type))
	}
}

func (p *WsPublisher) Close() {
	close(p.queue)
}

func (p *WsPublisher) writeLoop() {
	log := logger.Logger()

	var conn *websocket.Conn
	for event := range p.queue {
		if conn == nil {
			c, _, err := websocket.DefaultDialer.Dial(p.url, nil)
			if err != nil {
				log.Warn("failed to dial event sink", zap.Error(err))
				continue
			}
			conn = c
		}

		payload, err := json.Marshal(event)
		if err != nil {
			log.Warn("failed to marshal event", zap.Error(err))
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warn("failed to write event", zap.Error(err))
			conn.Close()
			conn = nil
		}
	}

	if conn != nil {
		conn.Close()
	}
}

// NopPublisher discards events. Used when no sink is configured and in
// tests.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

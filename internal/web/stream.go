package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/sweeney/sync-tester/internal/logic"
	"github.com/sweeney/sync-tester/internal/status"
)

// StreamMessage is one frame on /api/ws: either a periodic status frame or
// a watcher event pushed as it happens.
type StreamMessage struct {
	Type   string              `json:"type"`
	Status *status.StatusInner `json:"status,omitempty"`
	Event  *EventJSON          `json:"event,omitempty"`
}

// EventJSON is a watcher event as sent to stream clients.
type EventJSON struct {
	Timestamp    string   `json:"timestamp"`
	Event        string   `json:"event"`
	Signal       string   `json:"signal"`
	Rate         string   `json:"rate"`
	MeasuredHz   *float64 `json:"measured_hz"`
	ConfiguredHz int      `json:"configured_hz"`
}

func eventJSON(ev logic.Event) *EventJSON {
	var measured *float64
	if ev.MeasuredRate.Valid {
		hz := ev.MeasuredRate.Hz
		measured = &hz
	}
	return &EventJSON{
		Timestamp:    ev.Timestamp.UTC().Format(time.RFC3339),
		Event:        string(ev.Type),
		Signal:       string(ev.Signal),
		Rate:         string(ev.Rate),
		MeasuredHz:   measured,
		ConfiguredHz: ev.FrameRateHz,
	}
}

// Broker fans watcher events out to stream subscribers. A subscriber that
// falls behind loses events rather than blocking the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[chan logic.Event]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan logic.Event]struct{})}
}

// Subscribe registers a subscriber. Call the returned func to unsubscribe.
func (b *Broker) Subscribe() (<-chan logic.Event, func()) {
	ch := make(chan logic.Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber with room for it.
func (b *Broker) Publish(ev logic.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// handleStream upgrades to a websocket and sends a status frame on connect,
// then on every stream tick, plus each watcher event as it is published.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
	if err != nil {
		s.logger.Debugw("websocket accept", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	events, unsubscribe := s.events.Subscribe()
	defer unsubscribe()

	// The client never sends; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	if err := s.writeStatus(ctx, conn); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeStatus(ctx, conn); err != nil {
				return
			}
		case ev := <-events:
			if err := s.write(ctx, conn, StreamMessage{Type: "event", Event: eventJSON(ev)}); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeStatus(ctx context.Context, conn *websocket.Conn) error {
	inner := status.Build(s.tracker.Snapshot()).Status
	return s.write(ctx, conn, StreamMessage{Type: "status", Status: &inner})
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

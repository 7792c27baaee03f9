package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/sync-tester/internal/logic"
)

// fakeClient implements the parts of paho.Client the publisher uses.
// Calling anything else panics on the nil embedded interface.
type fakeClient struct {
	paho.Client

	mu        sync.Mutex
	open      bool
	failNext  int
	published []bufferedMsg
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) setOpen(open bool) {
	c.mu.Lock()
	c.open = open
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext > 0 {
		c.failNext--
		return &fakeToken{err: errors.New("broker rejected")}
	}
	c.published = append(c.published, bufferedMsg{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return &fakeToken{}
}

func (c *fakeClient) sent() []bufferedMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bufferedMsg(nil), c.published...)
}

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func event(t logic.EventType) logic.Event {
	return logic.Event{Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Type: t}
}

func TestPublishWhenConnected(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, 4, zap.NewNop().Sugar())

	if err := p.Publish(event(logic.EventSyncAcquired)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Event: "STARTUP", RawPayload: []byte(`{}`), Retained: true}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	sent := c.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	if sent[0].topic != Topic || sent[0].qos != 0 || sent[0].retained {
		t.Errorf("event message: %+v", sent[0])
	}
	if sent[1].topic != TopicSystem || sent[1].qos != 1 || !sent[1].retained {
		t.Errorf("system message: %+v", sent[1])
	}
	if p.Buffered() != 0 {
		t.Errorf("nothing should be buffered, got %d", p.Buffered())
	}
}

func TestPublishBuffersWhileDisconnected(t *testing.T) {
	c := &fakeClient{}
	p := newPublisher(c, 4, zap.NewNop().Sugar())

	for _, typ := range []logic.EventType{logic.EventSyncAcquired, logic.EventRateMismatch, logic.EventRateMatch} {
		if err := p.Publish(event(typ)); err != nil {
			t.Fatalf("buffered publish should not fail: %v", err)
		}
	}
	if p.Buffered() != 3 {
		t.Fatalf("expected 3 buffered, got %d", p.Buffered())
	}
	if p.IsConnected() {
		t.Error("IsConnected should be false")
	}
	if len(c.sent()) != 0 {
		t.Error("nothing should reach the broker while disconnected")
	}
}

func TestFirstConnectReplaysWithoutNotice(t *testing.T) {
	c := &fakeClient{}
	p := newPublisher(c, 4, zap.NewNop().Sugar())
	p.Publish(event(logic.EventSyncAcquired))

	c.setOpen(true)
	p.onConnect(c)

	sent := c.sent()
	if len(sent) != 1 || sent[0].topic != Topic {
		t.Fatalf("expected the buffered event only, got %+v", sent)
	}
	if p.Buffered() != 0 {
		t.Errorf("buffer should be empty after replay, got %d", p.Buffered())
	}
}

func TestReconnectAnnouncesAndReplaysInOrder(t *testing.T) {
	c := &fakeClient{open: true}
	p := newPublisher(c, 4, zap.NewNop().Sugar())
	p.onConnect(c)

	c.setOpen(false)
	p.Publish(event(logic.EventSyncLost))
	p.Publish(event(logic.EventSyncAcquired))

	c.setOpen(true)
	p.onConnect(c)

	sent := c.sent()
	if len(sent) != 3 {
		t.Fatalf("expected notice plus 2 replayed, got %d", len(sent))
	}
	if sent[0].topic != TopicSystem || !sent[0].retained {
		t.Errorf("first message should be the retained reconnect notice: %+v", sent[0])
	}
	if string(sent[0].payload) == "" {
		t.Error("reconnect notice payload empty")
	}
	p1, _ := FormatPayload(event(logic.EventSyncLost))
	p2, _ := FormatPayload(event(logic.EventSyncAcquired))
	if string(sent[1].payload) != string(p1) || string(sent[2].payload) != string(p2) {
		t.Errorf("replay out of order:\n%s\n%s", sent[1].payload, sent[2].payload)
	}
}

func TestReplayFailureRebuffers(t *testing.T) {
	c := &fakeClient{}
	p := newPublisher(c, 4, zap.NewNop().Sugar())
	p.Publish(event(logic.EventSyncAcquired))
	p.Publish(event(logic.EventRateMismatch))

	c.setOpen(true)
	c.failNext = 1
	p.onConnect(c)

	if p.Buffered() != 2 {
		t.Errorf("both messages should be back in the buffer, got %d", p.Buffered())
	}
}

func TestFailedSendIsBufferedAndReported(t *testing.T) {
	c := &fakeClient{open: true, failNext: 1}
	p := newPublisher(c, 4, zap.NewNop().Sugar())

	if err := p.Publish(event(logic.EventSyncLost)); err == nil {
		t.Error("expected an error from a rejected publish")
	}
	if p.Buffered() != 1 {
		t.Errorf("rejected message should be buffered, got %d", p.Buffered())
	}
}

func TestNewPublisherDefaultBuffer(t *testing.T) {
	p := newPublisher(&fakeClient{}, 0, zap.NewNop().Sugar())
	if got := p.buf.capacity(); got != DefaultBufferSize {
		t.Errorf("capacity: got %d, want %d", got, DefaultBufferSize)
	}
}

var (
	_ Publisher        = (*RealPublisher)(nil)
	_ ConnectionStatus = (*RealPublisher)(nil)
	_ Publisher        = (*FakePublisher)(nil)
	_ ConnectionStatus = (*FakePublisher)(nil)
)

package mqtt

import (
	"testing"

	"go.uber.org/zap"
)

func pushN(b *offlineBuffer, from, to int) {
	for i := from; i < to; i++ {
		b.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
}

func payloads(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestOfflineBufferDrain(t *testing.T) {
	tests := []struct {
		name        string
		capacity    int
		pushed      int
		wantFirst   byte
		wantLen     int
		wantDropped int
	}{
		{"empty", 4, 0, 0, 0, 0},
		{"partial", 10, 5, 0, 5, 0},
		{"exactly full", 5, 5, 0, 5, 0},
		{"overflow keeps newest", 5, 8, 3, 5, 3},
		{"capacity one", 1, 3, 2, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newOfflineBuffer(tt.capacity, zap.NewNop().Sugar())
			pushN(b, 0, tt.pushed)

			got, dropped := b.drainAll()
			if len(got) != tt.wantLen {
				t.Fatalf("got %d messages, want %d", len(got), tt.wantLen)
			}
			if dropped != tt.wantDropped {
				t.Errorf("dropped = %d, want %d", dropped, tt.wantDropped)
			}
			for i, p := range payloads(got) {
				if want := tt.wantFirst + byte(i); p != want {
					t.Errorf("message %d = %d, want %d", i, p, want)
				}
			}
			if b.len() != 0 {
				t.Errorf("len after drain = %d", b.len())
			}
		})
	}
}

func TestOfflineBufferEmptyDrainIsNil(t *testing.T) {
	b := newOfflineBuffer(3, zap.NewNop().Sugar())
	if got, _ := b.drainAll(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestOfflineBufferReuseAfterWrap(t *testing.T) {
	b := newOfflineBuffer(4, zap.NewNop().Sugar())
	pushN(b, 0, 6)
	b.drainAll()

	pushN(b, 10, 13)
	got, dropped := b.drainAll()
	if string(payloads(got)) != string([]byte{10, 11, 12}) {
		t.Errorf("second cycle = %v", payloads(got))
	}
	if dropped != 0 {
		t.Errorf("dropped should reset after drain, got %d", dropped)
	}
}

func TestOfflineBufferLen(t *testing.T) {
	b := newOfflineBuffer(2, zap.NewNop().Sugar())
	for i, want := range []int{1, 2, 2, 2} {
		b.push(bufferedMsg{topic: "t"})
		if b.len() != want {
			t.Errorf("after push %d: len = %d, want %d", i+1, b.len(), want)
		}
	}
}

func TestOfflineBufferPreservesFields(t *testing.T) {
	b := newOfflineBuffer(10, zap.NewNop().Sugar())
	in := bufferedMsg{
		topic:    TopicSystem,
		payload:  []byte(`{"system":{"event":"HEARTBEAT"}}`),
		qos:      1,
		retained: true,
	}
	b.push(in)

	got, _ := b.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	m := got[0]
	if m.topic != in.topic || string(m.payload) != string(in.payload) || m.qos != 1 || !m.retained {
		t.Errorf("got %+v, want %+v", m, in)
	}
}

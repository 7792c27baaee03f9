package mqtt

import "go.uber.org/zap"

// bufferedMsg is a serialized message waiting for the broker to come back.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineBuffer keeps the newest messages published while disconnected.
// When full, the oldest message is overwritten. The caller synchronizes.
type offlineBuffer struct {
	slots   []bufferedMsg
	start   int // index of the oldest message
	n       int
	dropped int // since the last drain
	logger  *zap.SugaredLogger
}

func newOfflineBuffer(capacity int, logger *zap.SugaredLogger) *offlineBuffer {
	return &offlineBuffer{slots: make([]bufferedMsg, capacity), logger: logger}
}

func (b *offlineBuffer) push(msg bufferedMsg) {
	size := len(b.slots)
	if b.n < size {
		b.slots[(b.start+b.n)%size] = msg
		b.n++
		return
	}
	if b.dropped == 0 {
		b.logger.Warnw("offline buffer full, dropping oldest", "capacity", size)
	}
	b.dropped++
	b.slots[b.start] = msg
	b.start = (b.start + 1) % size
}

// drainAll empties the buffer, returning its messages oldest first and the
// number overwritten since the previous drain.
func (b *offlineBuffer) drainAll() ([]bufferedMsg, int) {
	dropped := b.dropped
	b.dropped = 0
	if b.n == 0 {
		return nil, dropped
	}

	out := make([]bufferedMsg, 0, b.n)
	for i := 0; i < b.n; i++ {
		j := (b.start + i) % len(b.slots)
		out = append(out, b.slots[j])
		b.slots[j] = bufferedMsg{}
	}
	b.start, b.n = 0, 0
	return out, dropped
}

func (b *offlineBuffer) len() int {
	return b.n
}

func (b *offlineBuffer) capacity() int {
	return len(b.slots)
}

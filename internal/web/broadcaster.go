package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// StatusEvent is one SSE message: a log line, a scan token or a panel notice.
type StatusEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

const (
	clientBuffer = 64
	// historySize events are replayed to new subscribers so a page opened
	// mid-scan shows the current row.
	historySize = 32
)

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	history []string
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages, starting with
// the recent history, and a cleanup function the caller must call when done.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, clientBuffer)
	b.mu.Lock()
	for _, payload := range b.history {
		ch <- payload
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends {"t":"...","l":level,"msg":msg} to all subscribed clients.
// A client whose buffer is full misses the message.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	data, err := json.Marshal(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.history) == historySize {
		copy(b.history, b.history[1:])
		b.history = b.history[:historySize-1]
	}
	b.history = append(b.history, payload)
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// Clients returns the number of subscribed clients.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// BroadcastWriter returns an io.Writer broadcasting each Write as one "info"
// event, for debug.SetOutput.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b, level: "info"}
}

// TokenWriter returns an io.Writer for the scan token stream. The emitter
// writes one token per Write, which becomes one "token" event.
func TokenWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b, level: "token"}
}

type broadcastWriter struct {
	b     *StatusBroadcaster
	level string
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	if msg := strings.TrimSpace(string(p)); msg != "" {
		w.b.Broadcast(w.level, msg)
	}
	return len(p), nil
}

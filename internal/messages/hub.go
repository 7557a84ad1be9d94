package messages

import (
	"context"
	"strings"
	"sync"
	"time"

	"encmirror/internal/clock"
	"encmirror/internal/model"
)

// DefaultCapacity is the number of messages kept in memory when unset.
const DefaultCapacity = 500

// Level classifies a message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Message is one user-facing notification.
type Message struct {
	ID        uint64    `json:"id"`
	Time      time.Time `json:"time"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	Page      string    `json:"page,omitempty"`
	Action    string    `json:"action,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

// Filter narrows Fetch results. Zero fields match everything.
type Filter struct {
	Page      string
	RequestID string
	Levels    []Level
}

func (f Filter) matches(msg Message) bool {
	if f.Page != "" && !strings.EqualFold(f.Page, msg.Page) {
		return false
	}
	if f.RequestID != "" && f.RequestID != msg.RequestID {
		return false
	}
	if len(f.Levels) > 0 {
		for _, lvl := range f.Levels {
			if strings.EqualFold(string(lvl), string(msg.Level)) {
				return true
			}
		}
		return false
	}
	return true
}

// Changes answers a Fetch.
type Changes struct {
	FromID           uint64    `json:"fromId"`
	ToID             uint64    `json:"toId"`
	FullSyncRequired bool      `json:"fullSyncRequired"`
	Truncated        bool      `json:"truncated"`
	Items            []Message `json:"items"`
}

// Sink receives every published message.
type Sink interface {
	Append(Message)
}

// Hub stores recent messages and wakes waiters when new ones arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Message
	nextID   uint64
	sinks    []Sink
	clock    clock.Clock
}

// NewHub constructs a bounded message buffer. A nil clock uses wall time.
func NewHub(capacity int, clk clock.Clock) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.Real()
	}
	h := &Hub{capacity: capacity, clock: clk}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires a sink that receives every published message.
func (h *Hub) AddSink(sink Sink) {
	if sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish records an operation result. Results without a message are
// ignored. Source defaults to "server".
func (h *Hub) Publish(result model.OperationResult) (Message, bool) {
	if strings.TrimSpace(result.Message) == "" {
		return Message{}, false
	}
	msg := Message{
		Level:     LevelInfo,
		Message:   result.Message,
		Source:    result.Source,
		Page:      result.Page,
		Action:    result.Action,
		RequestID: result.RequestID,
	}
	if result.IsFailed {
		msg.Level = LevelError
	}
	if msg.Source == "" {
		msg.Source = "server"
	}

	h.mu.Lock()
	h.nextID++
	msg.ID = h.nextID
	msg.Time = h.clock.Now().UTC()
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, msg)
	sinks := append([]Sink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(msg)
	}
	return msg, true
}

// Fetch returns messages newer than since that pass filter, keeping the
// newest max when more match. FullSyncRequired is set when messages after
// since were already evicted from memory. When wait is true Fetch blocks
// until a message newer than since exists or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, filter Filter, max int, wait bool) (Changes, error) {
	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()
	for wait && h.nextID <= since {
		if err := contextError(ctx); err != nil {
			return Changes{FromID: since, ToID: h.nextID}, err
		}
		h.cond.Wait()
	}
	return h.changesLocked(since, filter, max), contextError(ctx)
}

func (h *Hub) changesLocked(since uint64, filter Filter, max int) Changes {
	out := Changes{FromID: since, ToID: h.nextID}
	if len(h.buffer) == 0 {
		return out
	}
	out.FullSyncRequired = since+1 < h.buffer[0].ID
	for _, msg := range h.buffer {
		if msg.ID > since && filter.matches(msg) {
			out.Items = append(out.Items, msg)
		}
	}
	if max > 0 && len(out.Items) > max {
		out.Truncated = true
		out.Items = out.Items[len(out.Items)-max:]
	}
	return out
}

// Latest returns the newest message carrying requestID.
func (h *Hub) Latest(requestID string) (Message, bool) {
	if requestID == "" {
		return Message{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.buffer) - 1; i >= 0; i-- {
		if h.buffer[i].RequestID == requestID {
			return h.buffer[i], true
		}
	}
	return Message{}, false
}

// Resume continues numbering after lastID, typically the newest archived
// message from a previous run. It has no effect once ids have passed lastID.
func (h *Hub) Resume(lastID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if lastID > h.nextID {
		h.nextID = lastID
	}
}

// FirstID reports the smallest id still buffered, or the next id to be
// assigned when the buffer is empty.
func (h *Hub) FirstID() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextID + 1
	}
	return h.buffer[0].ID
}

// LastID reports the newest assigned id.
func (h *Hub) LastID() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextID
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

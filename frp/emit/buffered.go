package emit

import (
	"context"
	"sync"
)

// BufferedEmitter stores events in memory, grouped by TxnID, so tests can
// assert on exactly what a transaction emitted.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewBufferedEmitter returns an Emitter that records events for later
// inspection via GetHistory.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.TxnID] = append(b.events[event.TxnID], event)
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		b.Emit(event)
	}
	return nil
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// GetHistory returns a copy of every event recorded for txnID, in emission
// order.
func (b *BufferedEmitter) GetHistory(txnID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	events := b.events[txnID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// Clear discards recorded events for txnID, or all events if txnID is empty.
func (b *BufferedEmitter) Clear(txnID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if txnID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, txnID)
}

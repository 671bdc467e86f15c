package entitlement

import (
	"sync"
	"time"

	"github.com/tarotware/paywall/pkg/types"
)

// Notifier broadcasts entitlement changes to any number of subscribers
// (SSE streams, tests). Slow subscribers drop events rather than block
// the writer.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan types.EntitlementChange
	next int
}

func NewNotifier() *Notifier {
	return &Notifier{subs: map[int]chan types.EntitlementChange{}}
}

// Subscribe returns a change channel and its cancel func. The channel is
// closed on cancel.
func (n *Notifier) Subscribe() (<-chan types.EntitlementChange, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	ch := make(chan types.EntitlementChange, 8)
	n.subs[id] = ch
	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if c, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(c)
		}
	}
}

// Publish fans the change out to all current subscribers.
func (n *Notifier) Publish(record *types.EntitlementRecord) {
	change := types.EntitlementChange{
		IsPremium: record != nil && record.IsPremium,
		Record:    record,
		ChangedAt: time.Now(),
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

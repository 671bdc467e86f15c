package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tarotware/paywall/pkg/tool"
	"github.com/tarotware/paywall/pkg/types"
)

// MemorySession is an in-process Session used in dev environments and
// tests. It holds a scripted catalog, auto-completes purchase requests
// through the listener path, and remembers finished purchases so restore
// has something to return.
type MemorySession struct {
	mu        sync.Mutex
	connected bool
	products  []*types.ProductDescriptor
	owned     []Purchase

	nextListenerID int
	onUpdated      map[int]func(Purchase)
	onError        map[int]func(PurchaseError)

	// EventDelay spaces the request from the completion event, mimicking
	// the asynchronous store queue. Zero means deliver synchronously on a
	// goroutine without sleeping.
	EventDelay time.Duration
	// FailNext, when set, makes the next purchase request emit this error
	// instead of a completed purchase.
	FailNext *PurchaseError
}

func NewMemorySession(products []*types.ProductDescriptor) *MemorySession {
	return &MemorySession{
		products:  products,
		onUpdated: map[int]func(Purchase){},
		onError:   map[int]func(PurchaseError){},
	}
}

func (m *MemorySession) InitConnection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MemorySession) EndConnection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *MemorySession) GetProducts(ctx context.Context, q ProductQuery) ([]*types.ProductDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("store session is not connected")
	}
	want := map[string]bool{}
	for _, sku := range q.SKUs {
		want[sku] = true
	}
	out := make([]*types.ProductDescriptor, 0, len(q.SKUs))
	for _, p := range m.products {
		if want[p.ProductID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemorySession) RequestPurchase(ctx context.Context, req PurchaseRequest) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return fmt.Errorf("store session is not connected")
	}
	fail := m.FailNext
	m.FailNext = nil
	delay := m.EventDelay
	productID := req.ProductID()
	m.mu.Unlock()

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		if fail != nil {
			fail.ProductID = productID
			m.emitError(*fail)
			return
		}
		txID := tool.GenerateUUIDV7()
		p := Purchase{
			ProductID:             productID,
			TransactionID:         txID,
			OriginalTransactionID: txID,
			TransactionReceipt:    fmt.Sprintf(`{"productId":%q,"transactionId":%q}`, productID, txID),
			PurchasedAt:           time.Now(),
		}
		m.mu.Lock()
		m.owned = append(m.owned, p)
		m.mu.Unlock()
		m.emitUpdated(p)
	}()
	return nil
}

func (m *MemorySession) OnPurchaseUpdated(fn func(Purchase)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListenerID
	m.nextListenerID++
	m.onUpdated[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.onUpdated, id)
	}
}

func (m *MemorySession) OnPurchaseError(fn func(PurchaseError)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListenerID
	m.nextListenerID++
	m.onError[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.onError, id)
	}
}

func (m *MemorySession) FinishTransaction(ctx context.Context, p Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.owned {
		if m.owned[i].TransactionID == p.TransactionID {
			m.owned[i].Acknowledged = true
		}
	}
	return nil
}

func (m *MemorySession) GetAvailablePurchases(ctx context.Context) ([]Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("store session is not connected")
	}
	out := make([]Purchase, len(m.owned))
	copy(out, m.owned)
	return out, nil
}

func (m *MemorySession) emitUpdated(p Purchase) {
	m.mu.Lock()
	fns := make([]func(Purchase), 0, len(m.onUpdated))
	for _, fn := range m.onUpdated {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (m *MemorySession) emitError(e PurchaseError) {
	m.mu.Lock()
	fns := make([]func(PurchaseError), 0, len(m.onError))
	for _, fn := range m.onError {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

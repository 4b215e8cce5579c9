// ABOUTME: In-memory DocumentStore with scripted failures and call counters
// ABOUTME: Used by tests to simulate flaky networks and slow writes

package remote

import (
	"context"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MemoryStore is a DocumentStore held in memory. Documents are deep-copied
// on the way in and out.
type MemoryStore struct {
	mu          sync.Mutex
	docs        map[string]*structpb.Struct
	gets        int
	sets        int
	getFailures []error
	setFailures []error
	latency     time.Duration
	gate        chan struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*structpb.Struct)}
}

// GetDocument returns a copy of the stored document or ErrNotFound.
func (m *MemoryStore) GetDocument(ctx context.Context, collection, id string) (*structpb.Struct, error) {
	m.mu.Lock()
	m.gets++
	latency := m.latency
	var fail error
	if len(m.getFailures) > 0 {
		fail, m.getFailures = m.getFailures[0], m.getFailures[1:]
	}
	m.mu.Unlock()

	if err := wait(ctx, latency, nil); err != nil {
		return nil, err
	}
	if fail != nil {
		return nil, fail
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docKey(collection, id)]
	if !ok {
		return nil, ErrNotFound
	}
	return proto.Clone(doc).(*structpb.Struct), nil
}

// SetDocument stores a copy of doc, replacing any existing document.
func (m *MemoryStore) SetDocument(ctx context.Context, collection, id string, doc *structpb.Struct) error {
	m.mu.Lock()
	m.sets++
	latency := m.latency
	gate := m.gate
	var fail error
	if len(m.setFailures) > 0 {
		fail, m.setFailures = m.setFailures[0], m.setFailures[1:]
	}
	m.mu.Unlock()

	if err := wait(ctx, latency, gate); err != nil {
		return err
	}
	if fail != nil {
		return fail
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docKey(collection, id)] = proto.Clone(doc).(*structpb.Struct)
	return nil
}

// FailGets queues errors returned by the next GetDocument calls, one per call.
func (m *MemoryStore) FailGets(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getFailures = append(m.getFailures, errs...)
}

// FailSets queues errors returned by the next SetDocument calls, one per call.
func (m *MemoryStore) FailSets(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setFailures = append(m.setFailures, errs...)
}

// SetLatency delays every call by d. The delay honours ctx cancellation.
func (m *MemoryStore) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// HoldSets blocks every SetDocument call that starts afterwards until the
// returned release function is called.
func (m *MemoryStore) HoldSets() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Put seeds a document without counting a call.
func (m *MemoryStore) Put(collection, id string, doc *structpb.Struct) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docKey(collection, id)] = proto.Clone(doc).(*structpb.Struct)
}

// Peek returns a copy of a document without counting a call.
func (m *MemoryStore) Peek(collection, id string) (*structpb.Struct, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docKey(collection, id)]
	if !ok {
		return nil, false
	}
	return proto.Clone(doc).(*structpb.Struct), true
}

// Calls returns how many GetDocument and SetDocument calls have been made.
func (m *MemoryStore) Calls() (gets, sets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets, m.sets
}

func wait(ctx context.Context, d time.Duration, gate <-chan struct{}) error {
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ DocumentStore = (*MemoryStore)(nil)

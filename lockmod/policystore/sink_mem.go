package policystore

import (
	"context"
	"sync"
)

// In-process sink, for tests and for running without durable state.
type MemSink struct {
	lk    sync.Mutex
	Raw   []byte
	Fail  error
	saves int
}

var _ Sink = (*MemSink)(nil)

func (m *MemSink) Load(ctx context.Context) ([]byte, error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.Raw == nil {
		return nil, ErrNoSnapshot
	}
	return m.Raw, nil
}

func (m *MemSink) Save(ctx context.Context, raw []byte) error {
	m.lk.Lock()
	defer m.lk.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Raw = raw
	m.saves++
	return nil
}

// Number of successful saves so far.
func (m *MemSink) Saves() int {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.saves
}

func (m *MemSink) SetFail(err error) {
	m.lk.Lock()
	defer m.lk.Unlock()
	m.Fail = err
}

// Last successfully saved snapshot.
func (m *MemSink) Snapshot() []byte {
	m.lk.Lock()
	defer m.lk.Unlock()
	return m.Raw
}

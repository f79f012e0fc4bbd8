package devices

import (
	"context"
	"sync"
)

// MockLister is an in-memory Lister and Notifier for tests.
type MockLister struct {
	mu      sync.Mutex
	devices []Device
	err     error
	calls   int
	changes chan struct{}
}

// NewMockLister creates a lister that returns devices.
func NewMockLister(devices ...Device) *MockLister {
	return &MockLister{devices: devices, changes: make(chan struct{}, 1)}
}

// List implements Lister.
func (m *MockLister) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]Device(nil), m.devices...), nil
}

// Changes implements Notifier.
func (m *MockLister) Changes() <-chan struct{} {
	return m.changes
}

// SetError makes List fail with err. Nil clears it.
func (m *MockLister) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SimulateChange replaces the devices and signals a topology change.
func (m *MockLister) SimulateChange(devices ...Device) {
	m.mu.Lock()
	m.devices = devices
	m.mu.Unlock()
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// Calls returns how many times List ran.
func (m *MockLister) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var (
	_ Lister   = (*MockLister)(nil)
	_ Notifier = (*MockLister)(nil)
)

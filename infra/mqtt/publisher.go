package mqtt

import (
	"context"
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/rotaplan/core/mqtt"
	"github.com/kilianp07/rotaplan/core/runlog"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// NewPublisher connects a PahoClient when publishing is enabled and returns a
// NopPublisher otherwise.
func NewPublisher(cfg Config) (Publisher, error) {
	if !cfg.Enabled {
		return coremqtt.NopPublisher{}, nil
	}
	return NewPahoClient(cfg)
}

// MockPublisher records published runs in memory. It is used in tests.
type MockPublisher struct {
	Runs []runlog.Record
	Fail bool
	mu   sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishRun stores the record or returns an error if configured to fail.
func (m *MockPublisher) PublishRun(_ context.Context, rec runlog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Runs = append(m.Runs, rec)
	return nil
}

// Published returns a copy of the recorded runs.
func (m *MockPublisher) Published() []runlog.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]runlog.Record(nil), m.Runs...)
}

func (m *MockPublisher) Disconnect() {}

package mqtt

import (
	"context"

	"github.com/kilianp07/rotaplan/core/runlog"
)

// Publisher announces finished optimization runs on a message broker.
type Publisher interface {
	// PublishRun sends the run record. It returns once the broker accepted
	// the message or the retries are exhausted.
	PublishRun(ctx context.Context, rec runlog.Record) error
	Disconnect()
}

// NopPublisher drops every run.
type NopPublisher struct{}

func (NopPublisher) PublishRun(context.Context, runlog.Record) error { return nil }
func (NopPublisher) Disconnect()                                     {}

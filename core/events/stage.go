package events

import "time"

// Stage actions.
const (
	ActionStart = "start"
	ActionDone  = "done"
)

// StageEvent is published when a run stage starts or completes.
type StageEvent struct {
	RunID   string
	Stage   string
	Action  string
	Elapsed time.Duration
	Err     error
}

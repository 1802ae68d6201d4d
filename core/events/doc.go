// Package events defines the progress events emitted on the event bus during
// an optimization run.
//
// Available event types:
//   - StageEvent: a run stage started or finished
//   - GroupSolvedEvent: one matching group converged
//   - CandidateEvent: the profit search scored a candidate
package events

// Package trigger fires scheduled re-runs of a named otto task set.
//
// Grounded on pit's internal/trigger/trigger.go (Event/Trigger
// interface shape); the FTP-watch trigger and its Files field are
// dropped — otto has no remote file-source concept, runs are strictly
// local and project-scoped — leaving cron as the one supplemented
// trigger.
package trigger

import "context"

// Event fires when a trigger wants a task set re-run.
type Event struct {
	TaskSetName string
	Source      string // "cron"
}

// Trigger watches for a condition and emits Events until ctx is done.
type Trigger interface {
	Start(ctx context.Context, events chan<- Event) error
	Name() string
}

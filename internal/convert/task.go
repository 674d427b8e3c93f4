package convert

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spiffcs/morph/internal/shutdown"
)

// Reporter receives per-task progress events. The dashboard renderer
// satisfies this; tasks never touch task records directly.
type Reporter interface {
	Update(id, progress int, description string)
	AddError(id int, message string)
}

// Fixed progress milestones reported to the dashboard. They pace user
// feedback and do not measure real completion.
const (
	progressUploading   = 5
	progressQueued      = 10
	progressConverting  = 15
	progressPollCeiling = 60
	progressPollStep    = 5
	progressDownloading = 80
	progressDownloaded  = 90
	progressDone        = 100
)

// abortCheckWait is the bounded pause at each cancellation checkpoint
// between workflow steps.
const abortCheckWait = time.Second

// DefaultPollTimeouts is the escalating wait sequence between status polls.
// The last value repeats once the sequence is exhausted.
var DefaultPollTimeouts = []time.Duration{10 * time.Second, 10 * time.Second, 15 * time.Second}

// Task drives exactly one file through submit, wait and download against
// the remote client, reporting every transition to the dashboard and
// checking the shared cancellation signal at each blocking point.
type Task struct {
	id       int
	spec     IOSpec
	client   Client
	progress Reporter
	shutdown *shutdown.Coordinator
	timeouts []time.Duration
	stepWait time.Duration
	current  int
}

// NewTask creates a task for one input file. timeouts may be nil to use
// DefaultPollTimeouts.
func NewTask(id int, spec IOSpec, client Client, progress Reporter, coord *shutdown.Coordinator, timeouts []time.Duration) *Task {
	if len(timeouts) == 0 {
		timeouts = DefaultPollTimeouts
	}
	return &Task{
		id:       id,
		spec:     spec,
		client:   client,
		progress: progress,
		shutdown: coord,
		timeouts: timeouts,
		stepWait: abortCheckWait,
	}
}

// Run executes the conversion synchronously on a pool worker. Every failure
// is converted into a dashboard error event; nothing propagates out, so one
// bad file can never take the pool down.
func (t *Task) Run() {
	defer func() {
		if p := recover(); p != nil {
			t.progress.AddError(t.id, fmt.Sprintf("Unexpected error: %v", p))
		}
	}()

	if err := t.run(); err != nil {
		t.progress.AddError(t.id, errorMessage(err))
	}
}

func (t *Task) run() error {
	if t.abortRequested(0) {
		return nil
	}

	t.report("Uploading", progressUploading)
	job, err := t.client.Submit(t.spec)
	if err != nil {
		return err
	}
	t.report("Queued", progressQueued)

	if t.abortRequested(t.stepWait) {
		return nil
	}
	t.report("Converting...", progressConverting)

	status, aborted, err := t.waitForCompletion(job)
	if err != nil {
		return err
	}
	if aborted {
		return nil
	}

	if !status.OK {
		// The service finished but reported the conversion itself failed.
		// That counts as a failed task like any transport or file error.
		return &RemoteError{Message: "Conversion failed"}
	}

	t.report("Downloading", progressDownloading)
	if err := job.Download(); err != nil {
		return err
	}
	if t.abortRequested(t.stepWait) {
		return nil
	}
	t.report("Download complete", progressDownloaded)
	if t.abortRequested(t.stepWait) {
		return nil
	}
	t.report("completed", progressDone)
	return nil
}

// waitForCompletion polls the job until it finishes, waiting on the shutdown
// signal between polls with the escalating timeout sequence. A signaled wait
// takes precedence over task completion.
func (t *Task) waitForCompletion(job Job) (Status, bool, error) {
	step := 0
	for {
		status, err := job.Poll()
		if err != nil {
			return Status{}, false, err
		}
		if status.Done {
			return status, false, nil
		}

		if t.shutdown.Wait(t.timeouts[step]) {
			t.reportAborted()
			return Status{}, true, nil
		}
		if step < len(t.timeouts)-1 {
			step++
		}

		// Creep toward the ceiling so the bar shows liveness without
		// claiming completion.
		t.report("Converting...", min(t.current+progressPollStep, progressPollCeiling))
	}
}

func (t *Task) report(description string, percentage int) {
	t.current = percentage
	t.progress.Update(t.id, t.current, description)
}

func (t *Task) reportAborted() {
	t.progress.Update(t.id, t.current, "Aborted")
}

// abortRequested checks the shutdown signal, optionally waiting up to the
// given duration first. Once observed, the abort is reported and terminal
// for this task.
func (t *Task) abortRequested(wait time.Duration) bool {
	if wait > 0 && t.shutdown.Wait(wait) {
		t.reportAborted()
		return true
	}
	if t.shutdown.IsSet() {
		t.reportAborted()
		return true
	}
	return false
}

// errorMessage maps a failure to a diagnostic dashboard message that
// preserves the failure category.
func errorMessage(err error) string {
	var pathErr *fs.PathError
	var netErr *NetworkError
	var remoteErr *RemoteError

	switch {
	case errors.As(err, &pathErr),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return fmt.Sprintf("File operation error: %v", err)
	case errors.As(err, &netErr):
		return fmt.Sprintf("Network error: %v", netErr.Err)
	case errors.Is(err, ErrInputNotFound):
		return err.Error()
	case errors.As(err, &remoteErr):
		return remoteErr.Error()
	default:
		return fmt.Sprintf("Unexpected error: %v", err)
	}
}

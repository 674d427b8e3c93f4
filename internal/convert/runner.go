package convert

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/spiffcs/morph/internal/dashboard"
	"github.com/spiffcs/morph/internal/format"
	"github.com/spiffcs/morph/internal/log"
	"github.com/spiffcs/morph/internal/shutdown"
)

// DefaultMaxConcurrent bounds simultaneous conversions when the caller
// does not choose a limit.
const DefaultMaxConcurrent = 2

// Summary reports the outcome of a batch once every task has ended.
type Summary struct {
	Total     int
	Completed int
	Failed    int
}

// Runner converts a batch of files with bounded concurrency, rendering
// progress on a shared dashboard until the batch drains.
type Runner struct {
	client        Client
	shutdown      *shutdown.Coordinator
	maxConcurrent int
	pollTimeouts  []time.Duration
	stepWait      time.Duration
	out           io.Writer
}

// RunnerOption adjusts runner construction.
type RunnerOption func(*Runner)

// WithMaxConcurrent bounds the worker pool. Values below one fall back to
// DefaultMaxConcurrent.
func WithMaxConcurrent(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrent = n
		}
	}
}

// WithPollTimeouts overrides the escalating status poll wait sequence.
func WithPollTimeouts(timeouts []time.Duration) RunnerOption {
	return func(r *Runner) {
		if len(timeouts) > 0 {
			r.pollTimeouts = timeouts
		}
	}
}

// WithOutput redirects dashboard and summary output, primarily for tests.
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.out = w
	}
}

// NewRunner wires a runner to a conversion client and a shutdown
// coordinator shared with the signal handler.
func NewRunner(client Client, coord *shutdown.Coordinator, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:        client,
		shutdown:      coord,
		maxConcurrent: DefaultMaxConcurrent,
		pollTimeouts:  DefaultPollTimeouts,
		stepWait:      abortCheckWait,
		out:           color.Output,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run converts every file in the batch to outputFormat and returns the
// summary once all tasks have ended. Duplicate paths are converted once.
// inputFormat may be empty to let the service detect it.
func (r *Runner) Run(files []string, outputFormat, inputFormat string) Summary {
	files = dedupe(files)
	if len(files) == 0 {
		fmt.Fprintln(r.out, "No files found.")
		return Summary{}
	}

	// Release the client even when shutdown interrupts the batch mid-flight.
	// Close is idempotent, so the post-drain close below is still safe.
	r.shutdown.OnSignal(func() {
		if err := r.client.Close(); err != nil {
			log.Debug("client close on shutdown", "error", err)
		}
	})

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}

	dash := dashboard.New(len(files), r.maxConcurrent, names,
		dashboard.WithWriter(r.out),
		dashboard.WithWake(r.shutdown.Done()),
	)
	dash.Start()

	log.Debug("starting batch", "files", len(files), "maxConcurrent", r.maxConcurrent, "to", outputFormat)

	g := new(errgroup.Group)
	g.SetLimit(r.maxConcurrent)
	for i, file := range files {
		task := NewTask(i+1, IOSpec{
			InputPath:    file,
			OutputPath:   outputPath(file, outputFormat),
			InputFormat:  inputFormat,
			OutputFormat: outputFormat,
		}, r.client, dash, r.shutdown, r.pollTimeouts)
		task.stepWait = r.stepWait
		g.Go(func() error {
			task.Run()
			return nil
		})
	}
	// Task failures surface on the dashboard, never as errors here.
	_ = g.Wait()

	dash.Stop()

	if err := r.client.Close(); err != nil {
		log.Debug("client close", "error", err)
	}

	total, completed, failed := dash.Summary()
	return Summary{Total: total, Completed: completed, Failed: failed}
}

// outputPath places the converted file beside its input, swapping the
// extension for the output format's.
func outputPath(input, outputFormat string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "." + format.Extension(outputFormat)
}

func dedupe(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

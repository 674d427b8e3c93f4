// Package dashboard renders a live, in-place terminal panel tracking the
// progress of concurrent file conversions. A background goroutine redraws
// the panel on a fixed cadence while synchronized entry points mutate task
// state, report errors, and produce a final static summary.
package dashboard

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/spiffcs/morph/internal/format"
)

// ANSI control sequences for in-place redrawing.
const (
	cursorHide = "\x1b[?25l"
	cursorShow = "\x1b[?25h"
	eraseLine  = "\x1b[2K"
)

func cursorPrevLines(n int) string {
	return fmt.Sprintf("\x1b[%dF", n)
}

const (
	defaultRefresh = 500 * time.Millisecond
	recentLimit    = 3 // completed/errored history shown, older entries ignored
	stopTimeout    = time.Second
)

// Renderer owns all task records and is the single writer to the terminal
// while a batch runs. All mutation goes through Update/AddError under one
// lock shared with the render loop, so no torn state is ever drawn.
type Renderer struct {
	total         int
	maxConcurrent int
	styles        Styles
	stylesSet     bool
	refresh       time.Duration
	out           io.Writer
	interactive   bool
	wake          <-chan struct{}

	mu           sync.Mutex
	tasks        map[int]*TaskInfo
	active       []*TaskInfo // running tasks sorted by id
	completed    []*TaskInfo // successful tasks in finish order
	errored      []*TaskInfo // failed tasks in finish order
	pendingCount int

	processStart time.Time
	processEnd   time.Time

	firstRender bool
	lastLines   int
	lastState   renderState
	needsRender bool

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWriter directs panel output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(r *Renderer) { r.out = w }
}

// WithStyles overrides the default panel styling.
func WithStyles(s Styles) Option {
	return func(r *Renderer) {
		r.styles = s
		r.stylesSet = true
	}
}

// WithRefreshInterval overrides the redraw cadence.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Renderer) { r.refresh = d }
}

// WithWake provides a channel that wakes the render loop early, so a
// shutdown signal is not delayed by a stale sleep.
func WithWake(ch <-chan struct{}) Option {
	return func(r *Renderer) { r.wake = ch }
}

// New creates a Renderer pre-populated with total pending tasks. Display
// names come from filenames where available, falling back to a generated
// name per index. IDs are 1-based and stable for the batch.
func New(total, maxConcurrent int, filenames []string, opts ...Option) *Renderer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	r := &Renderer{
		total:         total,
		maxConcurrent: maxConcurrent,
		styles:        DefaultStyles(),
		refresh:       defaultRefresh,
		out:           os.Stdout,
		tasks:         make(map[int]*TaskInfo, total),
		pendingCount:  total,
		firstRender:   true,
		needsRender:   true,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.interactive = isTerminal(r.out)
	if !r.interactive && !r.stylesSet {
		r.styles = PlainStyles()
	}
	for i := 1; i <= total; i++ {
		name := fmt.Sprintf("file-%d", i)
		if i <= len(filenames) {
			name = filenames[i-1]
		}
		r.tasks[i] = &TaskInfo{ID: i, Filename: name, Description: "Pending"}
	}
	return r
}

// Update sets a task's progress and description and applies the state
// machine: Pending becomes Running on the first progress strictly between
// 0 and 100, Running becomes Ended once progress reaches 100. Ended is
// terminal; later calls only touch display fields. Progress never decreases
// while a task is running.
func (r *Renderer) Update(id, progress int, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if t.State == StateRunning && progress < t.Progress {
		progress = t.Progress
	}
	t.Progress = progress
	t.Description = description

	now := time.Now()
	if progress > 0 && progress < 100 && t.State == StatePending {
		t.State = StateRunning
		t.StartTime = now
		if r.processStart.IsZero() {
			r.processStart = now
		}
	}
	if progress >= 100 && t.State == StateRunning {
		t.State = StateEnded
		t.EndTime = now
		t.Progress = 100
		if t.ErrMsg == "" {
			r.completed = append(r.completed, t)
			if len(r.completed) == r.total {
				r.processEnd = now
			}
		}
	}

	r.refreshLists()
	r.needsRender = true
}

// AddError marks a task as failed, forcing it to Ended regardless of prior
// progress. The first error wins; a task already ended is left untouched.
func (r *Renderer) AddError(id int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.State == StateEnded {
		return
	}

	t.ErrMsg = message
	t.State = StateEnded
	t.EndTime = time.Now()
	r.errored = append(r.errored, t)

	r.refreshLists()
	r.needsRender = true
}

// isTerminal reports whether w is connected to an interactive terminal.
func isTerminal(w io.Writer) bool {
	type fder interface{ Fd() uintptr }
	if f, ok := w.(fder); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Start hides the cursor and launches the background render loop.
func (r *Renderer) Start() {
	r.started = true
	if r.interactive {
		fmt.Fprint(r.out, cursorHide)
	}
	go r.loop()
}

// Stop terminates the render loop, waits for it (bounded), restores the
// cursor, and draws the final static summary in place of the live panel.
// The summary is never erased afterwards.
func (r *Renderer) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.started {
		select {
		case <-r.done:
		case <-time.After(stopTimeout):
		}
	}
	if r.interactive {
		fmt.Fprint(r.out, cursorShow)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderFinalSummary()
}

// SafePrint writes an ordinary line of output above the live panel without
// corrupting it: the panel region is cleared, the message printed, and the
// panel redrawn in place below it.
func (r *Renderer) SafePrint(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearPanel()
	fmt.Fprintln(r.out, message)

	state := r.snapshot()
	r.drawPanel(state)
	r.lastLines = panelHeight(r.maxConcurrent, len(state.recentCompleted), len(state.recentErrors))
	r.firstRender = false
}

// Summary returns the batch totals for exit-status decisions.
func (r *Renderer) Summary() (total, completed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total, len(r.completed), len(r.errored)
}

// refreshLists recomputes the active list and pending count. The completed
// and errored lists are maintained in finish order at transition time.
func (r *Renderer) refreshLists() {
	r.active = r.active[:0]
	for _, t := range r.tasks {
		if t.Running() {
			r.active = append(r.active, t)
		}
	}
	slices.SortFunc(r.active, func(a, b *TaskInfo) int { return a.ID - b.ID })
	r.pendingCount = r.total - len(r.completed) - len(r.active) - len(r.errored)
}

func (r *Renderer) loop() {
	defer close(r.done)
	wake := r.wake
	for {
		r.mu.Lock()
		if r.needsRender || r.firstRender {
			state := r.snapshot()
			if r.firstRender || !state.equal(r.lastState) {
				r.render(state)
				r.lastState = state
			}
			r.needsRender = false
		}
		r.mu.Unlock()

		timer := time.NewTimer(r.refresh)
		select {
		case <-r.stop:
			timer.Stop()
			return
		case <-wake:
			// Shutdown signaled: cut the sleep short once, then fall back
			// to the normal cadence.
			wake = nil
			timer.Stop()
		case <-timer.C:
		}
	}
}

// activeRow, completedRow and errorRow are the comparable units of the
// change-detection snapshot. Any field outside these never triggers a redraw.
type activeRow struct {
	id          int
	progress    int
	description string
}

type completedRow struct {
	id       int
	duration time.Duration
}

type errorRow struct {
	id      int
	message string
}

type renderState struct {
	completed, active, pending, errored int
	activeRows                          []activeRow
	recentCompleted                     []completedRow
	recentErrors                        []errorRow
}

func (s renderState) equal(o renderState) bool {
	return s.completed == o.completed &&
		s.active == o.active &&
		s.pending == o.pending &&
		s.errored == o.errored &&
		slices.Equal(s.activeRows, o.activeRows) &&
		slices.Equal(s.recentCompleted, o.recentCompleted) &&
		slices.Equal(s.recentErrors, o.recentErrors)
}

// snapshot captures the visible dashboard state. Caller holds the lock.
func (r *Renderer) snapshot() renderState {
	s := renderState{
		completed: len(r.completed),
		active:    len(r.active),
		pending:   r.pendingCount,
		errored:   len(r.errored),
	}
	for _, t := range r.active {
		s.activeRows = append(s.activeRows, activeRow{t.ID, t.Progress, t.Description})
	}
	for _, t := range lastN(r.completed, recentLimit) {
		d, _ := t.Duration()
		s.recentCompleted = append(s.recentCompleted, completedRow{t.ID, d})
	}
	for _, t := range lastN(r.errored, recentLimit) {
		s.recentErrors = append(s.recentErrors, errorRow{t.ID, t.ErrMsg})
	}
	return s
}

func lastN(tasks []*TaskInfo, n int) []*TaskInfo {
	if len(tasks) > n {
		return tasks[len(tasks)-n:]
	}
	return tasks
}

// panelHeight computes the number of lines the panel occupies for a given
// section visibility. The erase pass before each redraw depends on this
// being exact: borders, header, three separators, stats, overall progress
// and the active-section label account for the base of nine lines.
func panelHeight(maxConcurrent, recentCompleted, recentErrors int) int {
	h := 9 + maxConcurrent
	if recentCompleted > 0 {
		h += 1 + recentCompleted
	} else {
		h++ // "No completed tasks yet..." placeholder
	}
	if recentErrors > 0 {
		h += 2 + recentErrors
	}
	return h
}

// render redraws the panel in place. Caller holds the lock.
func (r *Renderer) render(state renderState) {
	if !r.firstRender && r.lastLines > 0 {
		fmt.Fprint(r.out, cursorPrevLines(r.lastLines))
	}
	r.drawPanel(state)
	r.lastLines = panelHeight(r.maxConcurrent, len(state.recentCompleted), len(state.recentErrors))
	r.firstRender = false
}

// clearPanel erases the previously drawn panel region and leaves the cursor
// at its top. Caller holds the lock.
func (r *Renderer) clearPanel() {
	lines := r.lastLines
	if lines == 0 {
		return
	}
	fmt.Fprint(r.out, cursorPrevLines(lines))
	for i := 0; i < lines; i++ {
		fmt.Fprint(r.out, eraseLine, "\n")
	}
	fmt.Fprint(r.out, cursorPrevLines(lines))
}

func (r *Renderer) overallPercent() int {
	if r.total == 0 {
		return 0
	}
	return len(r.completed) * 100 / r.total
}

// bar renders a progress bar of the given width scaled by percentage.
func (r *Renderer) bar(percentage, width int) string {
	filled := percentage * width / 100
	if filled > width {
		filled = width
	}
	return r.styles.BarFilled.Render(strings.Repeat("━", filled)) +
		r.styles.BarRemaining.Render(strings.Repeat("┈", width-filled))
}

func (r *Renderer) line(content string) {
	fmt.Fprint(r.out, eraseLine, "│", content, "│\n")
}

func (r *Renderer) border(left, right string) {
	fmt.Fprint(r.out, eraseLine, left, strings.Repeat("─", panelWidth-2), right, "\n")
}

func (r *Renderer) separator() {
	r.border("├", "┤")
}

// drawPanel writes every panel row. Caller holds the lock.
func (r *Renderer) drawPanel(state renderState) {
	inner := panelWidth - 2

	r.border("┌", "┐")
	r.line(r.styles.Header.Render(format.PadVisible("Morph - File Conversion Dashboard", inner, format.AlignCenter)))
	r.separator()

	stats := fmt.Sprintf("Total: %2d │ Completed: %2d │ Active: %2d │ Pending: %2d │ Failed: %2d",
		r.total, state.completed, state.active, state.pending, state.errored)
	if format.DisplayWidth(stats) > inner {
		stats = fmt.Sprintf("Total: %2d │ Done: %2d │ Active: %2d │ Pending: %2d │ Failed: %2d",
			r.total, state.completed, state.active, state.pending, state.errored)
	}
	r.line(r.styles.Stats.Render(format.PadVisible(stats, inner, format.AlignCenter)))

	overall := fmt.Sprintf("Overall Progress: %s %3d%%", r.bar(r.overallPercent(), barWidth), r.overallPercent())
	r.line(format.PadVisible(overall, inner, format.AlignCenter))

	r.separator()
	r.line(r.styles.Label.Render(format.PadVisible("Currently Converting:", inner, format.AlignCenter)))

	for i := 0; i < r.maxConcurrent; i++ {
		if i >= len(r.active) {
			r.line(strings.Repeat(" ", inner))
			continue
		}
		t := r.active[i]
		row := fmt.Sprintf("▸ %s %s %3d%% - %s",
			format.PadVisible(format.ShortenFilename(t.Filename, 20), 20, format.AlignLeft),
			r.bar(t.Progress, taskBarWidth),
			t.Progress,
			format.PadVisible(format.TruncateToWidth(t.Description, 13), 13, format.AlignLeft))
		r.line(format.PadVisible(row, inner, format.AlignLeft))
	}

	r.separator()

	recent := lastN(r.completed, recentLimit)
	if len(recent) > 0 {
		r.line(r.styles.Label.Render(format.PadVisible("Recently Completed:", inner, format.AlignCenter)))
		for _, t := range recent {
			d, _ := t.Duration()
			row := fmt.Sprintf("✓ %s (%s)",
				format.PadVisible(format.ShortenFilename(t.Filename, 30), 30, format.AlignLeft),
				format.Duration(d))
			r.line(r.styles.Completed.Render(format.PadVisible(row, inner, format.AlignCenter)))
		}
	} else {
		r.line(r.styles.Label.Render(format.PadVisible("No completed tasks yet...", inner, format.AlignCenter)))
	}

	errs := lastN(r.errored, recentLimit)
	if len(errs) > 0 {
		r.separator()
		r.line(r.styles.Label.Render(format.PadVisible("Errors:", inner, format.AlignCenter)))
		for _, t := range errs {
			// No styling on error rows so width math stays trivial.
			prefix := fmt.Sprintf("✗ %s - ", format.PadVisible(format.ShortenFilename(t.Filename, 12), 12, format.AlignLeft))
			avail := inner - format.DisplayWidth(prefix)
			msg := t.ErrMsg
			if msg == "" {
				msg = "Unknown error"
			}
			if format.DisplayWidth(msg) > avail {
				msg = format.StripAnsi(format.TruncateToWidth(msg, avail))
			}
			r.line(format.PadVisible(prefix+msg, inner, format.AlignLeft))
		}
	}

	r.border("└", "┘")
}

// renderFinalSummary replaces the live panel with a static summary box.
// Caller holds the lock.
func (r *Renderer) renderFinalSummary() {
	r.clearPanel()

	inner := panelWidth - 2
	completed := len(r.completed)
	failed := len(r.errored)

	var summary string
	switch {
	case completed == 0 && failed == 0:
		summary = fmt.Sprintf("No files were converted (%s processed)",
			format.CountWithPlural(r.total, "file"))
	case completed == r.total:
		summary = fmt.Sprintf("Successfully converted %s/%d",
			format.CountWithPlural(completed, "file"), r.total)
	case failed == r.total:
		summary = fmt.Sprintf("All %s failed to convert",
			format.CountWithPlural(r.total, "file"))
	default:
		summary = fmt.Sprintf("Partially completed: %s/%d",
			format.CountWithPlural(completed, "file"), r.total)
	}

	center := func(s string) string { return format.PadVisible(s, inner, format.AlignCenter) }

	fmt.Fprintln(r.out, "┌"+strings.Repeat("─", inner)+"┐")
	fmt.Fprintln(r.out, "│"+center("Conversion Complete!")+"│")
	fmt.Fprintln(r.out, "├"+strings.Repeat("─", inner)+"┤")
	fmt.Fprintln(r.out, "│"+center(summary)+"│")

	if failed > 0 {
		fmt.Fprintln(r.out, "│"+center(fmt.Sprintf("Failed: %s failed to convert",
			format.CountWithPlural(failed, "file")))+"│")
	}

	if completed > 0 && !r.processStart.IsZero() && !r.processEnd.IsZero() {
		wall := r.processEnd.Sub(r.processStart)
		avg := wall / time.Duration(completed)
		fmt.Fprintln(r.out, "│"+center(fmt.Sprintf("Total time: %s | Average: %s per file",
			format.Duration(wall), format.Duration(avg)))+"│")
	}

	fmt.Fprintln(r.out, "└"+strings.Repeat("─", inner)+"┘")
}

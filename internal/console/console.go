// Package console prints dotrun's user-facing progress and diagnostics.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	// Color functions - fatih/color disables them when output is not a TTY
	noteColor  = color.New(color.FgMagenta)
	errorColor = color.New(color.FgRed, color.Bold)
	stepColor  = color.New(color.FgCyan)
	asideColor = color.New(color.FgMagenta, color.Faint)
)

// Reporter is what the install and run logic reports progress to.
type Reporter interface {
	// Note prints a minor progress message.
	Note(msg string)

	// Error prints a fatal diagnostic.
	Error(msg string)

	// Step announces a major step; aside may be empty.
	Step(title, aside string)
}

// Console implements Reporter on a pair of writers.
type Console struct {
	out    io.Writer
	errOut io.Writer
}

// New creates a Console writing progress to out and errors to errOut.
func New(out, errOut io.Writer) *Console {
	return &Console{out: out, errOut: errOut}
}

// NewStd creates a Console on stdout and stderr.
func NewStd() *Console {
	return New(os.Stdout, os.Stderr)
}

// Note prints "- msg" in magenta.
func (c *Console) Note(msg string) {
	_, _ = noteColor.Fprintf(c.out, "- %s\n", msg)
}

// Error prints "= msg =" in red, surrounded by blank lines.
func (c *Console) Error(msg string) {
	_, _ = errorColor.Fprintf(c.errOut, "\n= %s =\n\n", msg)
}

// Step prints "[ title ]" in cyan, followed by a dimmed "( aside )" if set.
func (c *Console) Step(title, aside string) {
	if aside == "" {
		_, _ = stepColor.Fprintf(c.out, "\n[ %s ]\n\n", title)
		return
	}
	_, _ = stepColor.Fprintf(c.out, "\n[ %s ]", title)
	_, _ = asideColor.Fprintf(c.out, " ( %s )\n\n", aside)
}

// Entry is one message captured by a Recorder.
type Entry struct {
	Kind  string // "note", "error" or "step"
	Text  string
	Aside string
}

func (e Entry) String() string {
	if e.Aside != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Text, e.Aside)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Text)
}

// Recorder implements Reporter by recording entries, for tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// Note records a note.
func (r *Recorder) Note(msg string) { r.add(Entry{Kind: "note", Text: msg}) }

// Error records an error.
func (r *Recorder) Error(msg string) { r.add(Entry{Kind: "error", Text: msg}) }

// Step records a step.
func (r *Recorder) Step(title, aside string) { r.add(Entry{Kind: "step", Text: title, Aside: aside}) }

// Entries returns a copy of everything recorded.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Texts returns the recorded texts of the given kind.
func (r *Recorder) Texts(kind string) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Kind == kind {
			out = append(out, e.Text)
		}
	}
	return out
}

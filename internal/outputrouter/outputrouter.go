// Package outputrouter tees a task's stdout/stderr to its log files on
// disk and to any live subscribers (e.g. a `otto run --follow` client),
// line by line.
//
// Grounded on otto-rs's src/executor/output.rs TaskStreams
// (stdout/stderr log files plus a broadcast::channel(100) of
// TaskOutput lines) and pit's internal/engine/executor.go prefixWriter
// (line-buffering a raw io.Writer stream). Go has no broadcast channel
// primitive, so Subscribe hands back a private buffered channel that
// every TaskWriter.Write fans each completed line out to, without
// blocking — the nearest idiomatic equivalent of tokio::sync::broadcast.
package outputrouter

import (
	"bufio"
	"io"
	"os"
	"sync"
	"time"

	"github.com/druarnfield/otto/internal/engine"
)

// subscriberCapacity matches otto-rs's broadcast::channel(100): a slow
// subscriber can fall behind by up to this many lines; further lines
// to it are dropped rather than blocking the task.
const subscriberCapacity = 100

// StreamKind distinguishes stdout from stderr.
type StreamKind string

const (
	Stdout StreamKind = "stdout"
	Stderr StreamKind = "stderr"
)

// Line is a single line of task output, broadcast to live subscribers.
type Line struct {
	TaskName  string
	Stream    StreamKind
	Timestamp time.Time
	Content   string
}

// Router owns live subscriptions across every task in a run. One
// Router is created per run and handed to the scheduler, which opens
// a TaskWriter per task as it starts.
type Router struct {
	mu   sync.Mutex
	subs map[int]chan Line
	next int
}

func New() *Router {
	return &Router{subs: make(map[int]chan Line)}
}

// Subscribe returns a channel of every line broadcast from this point
// on, across all tasks. Call the returned cancel func to unsubscribe.
func (r *Router) Subscribe() (<-chan Line, func()) {
	r.mu.Lock()
	id := r.next
	r.next++
	ch := make(chan Line, subscriberCapacity)
	r.subs[id] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if ch, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Router) broadcast(line Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- line:
		default:
			// Subscriber fell behind by subscriberCapacity lines; drop
			// this line rather than block the task, matching
			// broadcast::channel's lagging-receiver semantics.
		}
	}
}

// TaskWriter tees a single task's stdout or stderr to its log file on
// disk and to the Router, buffering partial lines the way
// pit's prefixWriter does.
type TaskWriter struct {
	router   *Router
	taskName string
	stream   StreamKind
	file     *os.File
	buf      []byte
}

// OpenTaskWriter creates (or truncates) the log file at path and
// returns a writer that tees every line written to it into router.
func OpenTaskWriter(router *Router, taskName string, stream StreamKind, path string) (*TaskWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, engine.NewTaskError(engine.ErrWorkspace, taskName, err)
	}
	return &TaskWriter{router: router, taskName: taskName, stream: stream, file: f}, nil
}

func (w *TaskWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.buf = append(w.buf, p...)
	for {
		idx := indexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := w.buf[:idx+1]
		if _, err := w.file.Write(line); err != nil {
			return n, err
		}
		w.router.broadcast(Line{
			TaskName:  w.taskName,
			Stream:    w.stream,
			Timestamp: time.Now(),
			Content:   string(line[:len(line)-1]),
		})
		w.buf = w.buf[idx+1:]
	}
	return n, nil
}

// Close flushes any unterminated trailing line and closes the file.
func (w *TaskWriter) Close() error {
	if len(w.buf) > 0 {
		if _, err := w.file.Write(w.buf); err != nil {
			w.file.Close()
			return err
		}
		w.router.broadcast(Line{
			TaskName:  w.taskName,
			Stream:    w.stream,
			Timestamp: time.Now(),
			Content:   string(w.buf),
		})
		w.buf = nil
	}
	return w.file.Close()
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// ReadLog reads every line of a closed task's log file at path.
func ReadLog(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

var _ io.WriteCloser = (*TaskWriter)(nil)

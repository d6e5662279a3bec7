// Package diagnostics provides the process-wide logging collaborator used
// in place of global print/abort macros, so that tests can capture emitted
// messages instead of reading stdout.
package diagnostics

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the collaborator injected into Reservoir/Control/method drivers
// at setup. It is a thin wrapper over logrus.FieldLogger so call sites can
// attach structured fields (step, dt, cell, well) instead of formatting
// strings by hand.
type Logger struct {
	entry *logrus.Entry
}

// New creates a Logger backed by a fresh logrus.Logger at the given level.
func New(level logrus.Level) *Logger {
	l := logrus.New()
	l.SetLevel(level)
	return &Logger{entry: logrus.NewEntry(l)}
}

// With returns a derived Logger carrying the given structured fields.
func (g *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{entry: g.entry.WithFields(fields)}
}

func (g *Logger) Info(msg string)  { g.entry.Info(msg) }
func (g *Logger) Warn(msg string)  { g.entry.Warn(msg) }
func (g *Logger) Error(msg string) { g.entry.Error(msg) }

// Recorder is a logrus.Hook that keeps every fired entry in memory so tests
// can assert on emitted diagnostics without scraping stdout.
type Recorder struct {
	mu      sync.Mutex
	Records []Record
}

// Record is one captured log line.
type Record struct {
	Level   logrus.Level
	Message string
	Fields  logrus.Fields
}

// NewRecorder attaches a Recorder to the Logger's underlying logrus.Logger
// and returns it so the caller can inspect Records after a run.
func NewRecorder(g *Logger) *Recorder {
	rec := &Recorder{}
	g.entry.Logger.AddHook(rec)
	return rec
}

func (r *Recorder) Levels() []logrus.Level { return logrus.AllLevels }

func (r *Recorder) Fire(e *logrus.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, Record{Level: e.Level, Message: e.Message, Fields: logrus.Fields(e.Data)})
	return nil
}

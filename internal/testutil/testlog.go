// Package testlog records log entries so tests can assert on what a
// component logged.
package testlog

import (
	"sync"

	"service-sla-guard/internal/logx"
)

// Entry is one recorded log call, with fields bound through With first.
type Entry struct {
	Level  string
	Msg    string
	Fields []logx.Field
}

// Field returns the value of the last field named key.
func (e Entry) Field(key string) (any, bool) {
	for i := len(e.Fields) - 1; i >= 0; i-- {
		if e.Fields[i].Key == key {
			return e.Fields[i].Value, true
		}
	}
	return nil, false
}

// Recorder collects entries from every Logger it hands out. It is safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty Recorder.
func New() *Recorder { return &Recorder{} }

// Logger returns a Logger writing into r.
func (r *Recorder) Logger() logx.Logger {
	return bound{r: r}
}

// Entries returns a copy of the recorded entries in call order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Find returns the first entry with message msg.
func (r *Recorder) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

// Has reports whether any entry has message msg.
func (r *Recorder) Has(msg string) bool {
	_, ok := r.Find(msg)
	return ok
}

func (r *Recorder) add(level, msg string, fields []logx.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

type bound struct {
	r    *Recorder
	base []logx.Field
}

func (b bound) log(level, msg string, f []logx.Field) {
	fields := make([]logx.Field, 0, len(b.base)+len(f))
	fields = append(fields, b.base...)
	b.r.add(level, msg, append(fields, f...))
}

func (b bound) Debug(msg string, f ...logx.Field) { b.log("debug", msg, f) }
func (b bound) Info(msg string, f ...logx.Field)  { b.log("info", msg, f) }
func (b bound) Warn(msg string, f ...logx.Field)  { b.log("warn", msg, f) }
func (b bound) Error(msg string, f ...logx.Field) { b.log("error", msg, f) }

func (b bound) With(f ...logx.Field) logx.Logger {
	base := make([]logx.Field, 0, len(b.base)+len(f))
	base = append(base, b.base...)
	return bound{r: b.r, base: append(base, f...)}
}

func (b bound) Sync() error { return nil }

var _ logx.Logger = bound{}

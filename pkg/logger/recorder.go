package logger

import "sync"

// Entry is one line captured by a Recorder.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

// Recorder keeps every entry in memory. Fatal is recorded but does not exit.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Debug(msg string, keysAndValues ...interface{}) { r.add("debug", msg, keysAndValues) }
func (r *Recorder) Info(msg string, keysAndValues ...interface{})  { r.add("info", msg, keysAndValues) }
func (r *Recorder) Warn(msg string, keysAndValues ...interface{})  { r.add("warn", msg, keysAndValues) }
func (r *Recorder) Error(msg string, keysAndValues ...interface{}) { r.add("error", msg, keysAndValues) }
func (r *Recorder) Fatal(msg string, keysAndValues ...interface{}) { r.add("fatal", msg, keysAndValues) }

// Entries returns a copy of the captured entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// ByLevel returns the captured entries at level.
func (r *Recorder) ByLevel(level string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) add(level, msg string, keysAndValues []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: parseKeyValues(keysAndValues...)})
}

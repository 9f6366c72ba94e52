// Package runlog appends one JSON line per pipeline stage to a run log, so
// regression runs leave a machine-readable trail without parsing terminal
// output.
package runlog

import (
	"encoding/json"
	"os"
	"sync"
)

// Event is one logged harness occurrence: a stage outcome or the final
// run summary.
type Event struct {
	Timestamp  string   `json:"timestamp"`
	Mode       string   `json:"mode"`
	Stage      string   `json:"stage"`
	Verdict    string   `json:"verdict"`
	Diagnostic string   `json:"diagnostic,omitempty"`
	Argv       []string `json:"argv,omitempty"`
	DurationMS int64    `json:"duration_ms,omitempty"`
	ExitCode   *int     `json:"exit_code,omitempty"`
}

// Logger appends events to a JSONL file.
type Logger struct {
	file *os.File
	mu   sync.Mutex
}

// New opens (or creates) the run log at path for appending.
func New(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &Logger{file: file}, nil
}

// Log writes one event as a single JSON line.
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

package command

import (
	"context"
	"strings"
	"sync"
)

// Recorder is an in-memory Runner for tests. It records every Spec and answers
// from scripted responses matched by command-line prefix.
type Recorder struct {
	mu        sync.Mutex
	calls     []Spec
	responses []response
}

type response struct {
	prefix string
	output []byte
	err    error
}

// NewRecorder creates an empty Recorder; unmatched commands succeed with no output.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// On scripts the result for commands whose String() starts with prefix.
// Later registrations take precedence.
func (r *Recorder) On(prefix string, output string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{prefix: prefix, output: []byte(output), err: err})
	return r
}

func (r *Recorder) Run(_ context.Context, spec Spec) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, spec)
	line := spec.String()
	for i := len(r.responses) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, r.responses[i].prefix) {
			return r.responses[i].output, r.responses[i].err
		}
	}
	return nil, nil
}

// Calls returns the recorded specs in order.
func (r *Recorder) Calls() []Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Spec, len(r.calls))
	copy(out, r.calls)
	return out
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

package executil

import (
	"context"
	"strings"
	"sync"
)

// Recorder is a Runner that records commands instead of running them.
// Responses are matched on the command line prefix (name + args joined by
// spaces, before redaction).
type Recorder struct {
	mu        sync.Mutex
	Cmds      []Cmd
	responses []response
}

type response struct {
	prefix string
	out    string
	err    error
}

// On registers the output and error returned for any command whose line
// starts with prefix. Later registrations win.
func (r *Recorder) On(prefix, out string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{prefix: prefix, out: out, err: err})
	return r
}

func (r *Recorder) Run(_ context.Context, cmd Cmd) error {
	_, err := r.record(cmd)
	return err
}

func (r *Recorder) Output(_ context.Context, cmd Cmd) (string, error) {
	return r.record(cmd)
}

// Lines returns every recorded command line, unredacted.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Cmds))
	for i, c := range r.Cmds {
		out[i] = line(c)
	}
	return out
}

func (r *Recorder) record(cmd Cmd) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cmds = append(r.Cmds, cmd)
	l := line(cmd)
	for i := len(r.responses) - 1; i >= 0; i-- {
		if strings.HasPrefix(l, r.responses[i].prefix) {
			return r.responses[i].out, r.responses[i].err
		}
	}
	return "", nil
}

func line(c Cmd) string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

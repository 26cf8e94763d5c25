package cmdutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call is a single invocation seen by a FakeRunner.
type Call struct {
	Dir  string
	Args []string
}

// FakeRunner is a Runner that records invocations instead of spawning
// processes. Responses are keyed by the space-joined command line; commands
// without a response succeed with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string]fakeResponse
}

type fakeResponse struct {
	result *Result
	err    error
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string]fakeResponse)}
}

// Respond registers the stdout and exit code returned for a command line.
// A non-zero exit code also makes Run return an error, as Run does.
func (f *FakeRunner) Respond(cmdLine, stdout, stderr string, exitCode int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := &Result{
		Stdout:   []byte(stdout),
		Stderr:   []byte(stderr),
		Output:   []byte(stdout + stderr),
		ExitCode: exitCode,
	}
	var err error
	if exitCode != 0 {
		err = fmt.Errorf("command %q exited with code %d", cmdLine, exitCode)
	}
	f.responses[cmdLine] = fakeResponse{result: res, err: err}
}

// Run implements Runner. A done ctx fails the call the way a killed
// process would.
func (f *FakeRunner) Run(ctx context.Context, opts ExecOptions, cmdParts []string) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Dir: opts.Dir, Args: append([]string(nil), cmdParts...)})

	if err := ctx.Err(); err != nil {
		return &Result{ExitCode: -1}, fmt.Errorf("command %q failed: %w", strings.Join(cmdParts, " "), err)
	}

	if resp, ok := f.responses[strings.Join(cmdParts, " ")]; ok {
		return resp.result, resp.err
	}
	return &Result{}, nil
}

// Calls returns a copy of every invocation so far.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Invoked reports whether any recorded call started with the given command.
func (f *FakeRunner) Invoked(name string) bool {
	for _, c := range f.Calls() {
		if len(c.Args) > 0 && c.Args[0] == name {
			return true
		}
	}
	return false
}

package plugins

import (
	"context"
	"errors"
	"os"

	"video-pipeline/internal/plugin"
)

// runnerCall records one invocation seen by fakeRunner.
type runnerCall struct {
	name string
	args []string
}

// fakeRunner returns canned results keyed by command name, or delegates
// to run when set.
type fakeRunner struct {
	calls   []runnerCall
	run     func(call int, name string, args []string) (plugin.CommandResult, error)
	results map[string]plugin.CommandResult
	errs    map[string]error
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (plugin.CommandResult, error) {
	call := len(r.calls)
	r.calls = append(r.calls, runnerCall{name: name, args: append([]string(nil), args...)})
	if r.run != nil {
		return r.run(call, name, args)
	}
	return r.results[name], r.errs[name]
}

func lookPathOK(name string) (string, error) { return "/usr/bin/" + name, nil }

func lookPathMissing(missing ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, m := range missing {
			if name == m {
				return "", errors.New("executable file not found in $PATH")
			}
		}
		return "/usr/bin/" + name, nil
	}
}

func statOK(string) (os.FileInfo, error) { return nil, nil }

func statMissing(string) (os.FileInfo, error) { return nil, os.ErrNotExist }

func mkdirAllOK(string, os.FileMode) error { return nil }

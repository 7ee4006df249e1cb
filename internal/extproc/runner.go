package extproc

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// Result is the typed outcome of one external tool invocation. Callers branch
// on ExitCode instead of re-deriving it from exec errors.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner abstracts external process execution so pollers and dispatchers can
// be tested with a fake instead of spawning real tools.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

type ExecRunner struct {
	logger *logrus.Logger
}

func NewExecRunner(logger *logrus.Logger) *ExecRunner {
	if logger == nil {
		logger = logrus.New()
	}
	return &ExecRunner{logger: logger}
}

// Run executes the tool and captures stdout/stderr. A non-zero exit is not an
// error here: the Result carries the exit code and the caller decides. Run
// returns an error only when the process could not be started or the context
// was cancelled.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			r.logger.Debugf("%s exited with code %d after %v", name, res.ExitCode, res.Duration)
			return res, nil
		}
		return res, err
	}

	r.logger.Debugf("%s completed in %v", name, res.Duration)
	return res, nil
}

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Steiner-254/subsentry/internal/extproc"
	"github.com/Steiner-254/subsentry/internal/state"
	"github.com/Steiner-254/subsentry/pkg/models"
)

// Engine runs the vulnerability scanner against a file of targets, writing
// findings to the output path. The engine's template evaluation is outside
// this repository; only exit status and artifacts cross the boundary.
type Engine interface {
	Scan(ctx context.Context, listPath, outPath string) (exitCode int, err error)
}

// ExecEngine invokes a nuclei-style scanner binary.
type ExecEngine struct {
	tool   string
	args   []string
	runner extproc.Runner
}

func NewExecEngine(tool string, extraArgs []string, runner extproc.Runner) *ExecEngine {
	return &ExecEngine{tool: tool, args: extraArgs, runner: runner}
}

func (e *ExecEngine) Scan(ctx context.Context, listPath, outPath string) (int, error) {
	args := append([]string{"-l", listPath, "-o", outPath}, e.args...)
	res, err := e.runner.Run(ctx, e.tool, args...)
	if err != nil {
		return -1, fmt.Errorf("run %s: %w", e.tool, err)
	}
	return res.ExitCode, nil
}

// Dispatcher runs exactly one scan job per committed generation. A failed job
// is logged and left as a permanent gap: its subdomains are already in the
// known set, so no later diff will resubmit them. That trade-off is
// deliberate; the operator re-runs by hand if the gap matters.
type Dispatcher struct {
	engine   Engine
	store    *state.Store
	eventLog *state.EventLog
	timeout  time.Duration
	logger   *logrus.Logger
}

func NewDispatcher(engine Engine, store *state.Store, eventLog *state.EventLog, timeout time.Duration, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{
		engine:   engine,
		store:    store,
		eventLog: eventLog,
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatch executes the scan job for one generation. The generation file
// itself is the target list. On success the generation's members are appended
// to the scanned ledger.
func (d *Dispatcher) Dispatch(ctx context.Context, gen *models.Generation) *models.ScanJob {
	job := &models.ScanJob{
		Domain:     gen.Domain,
		Generation: gen.Number,
		Status:     models.ScanJobCreated,
		ListPath:   d.store.GenerationPath(gen.Domain, gen.Number),
		RawPath:    d.store.RawScanPath(gen.Domain, gen.Number),
		StartTime:  time.Now().UTC(),
	}

	scanCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	job.Status = models.ScanJobRunning
	d.logger.Infof("Scan job started for %s generation %d (%d targets)", gen.Domain, gen.Number, len(gen.Subdomains))

	exitCode, err := d.engine.Scan(scanCtx, job.ListPath, job.RawPath)
	job.EndTime = time.Now().UTC()
	job.ExitCode = exitCode

	if err != nil || exitCode != 0 {
		job.Status = models.ScanJobFailed
		if err != nil {
			job.Error = err.Error()
		} else {
			job.Error = fmt.Sprintf("scan engine exited with code %d", exitCode)
		}
		d.logger.Errorf("Scan job failed for %s generation %d: %s", gen.Domain, gen.Number, job.Error)
		d.eventLog.Append(gen.Domain, "scan_failure",
			fmt.Sprintf("generation=%d exit_code=%d error=%q", gen.Number, exitCode, job.Error))
		return job
	}

	job.Status = models.ScanJobCompleted
	if err := d.store.AppendScanned(gen.Domain, gen.Subdomains); err != nil {
		// Ledger is audit-only; a failed append does not fail the job.
		d.logger.Warnf("Failed to update scanned ledger for %s: %v", gen.Domain, err)
	}
	d.logger.Infof("Scan job completed for %s generation %d in %v", gen.Domain, gen.Number, job.Duration())
	return job
}

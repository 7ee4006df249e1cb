package extproc

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
)

var versionRE = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)

// Checker verifies that external tools are installed and, where a minimum is
// configured, recent enough. Missing tools are reported, not fatal: the
// built-in CT-log provider keeps the monitor functional without them.
type Checker struct {
	runner Runner
	logger *logrus.Logger
}

func NewChecker(runner Runner, logger *logrus.Logger) *Checker {
	if logger == nil {
		logger = logrus.New()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &Checker{runner: runner, logger: logger}
}

func (c *Checker) Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// CheckVersion runs `<tool> -version` and compares the first version-looking
// token against the given semver constraint. Tools that print no parseable
// version are accepted with a warning; version gating is advisory.
func (c *Checker) CheckVersion(ctx context.Context, name, minVersion string) error {
	if minVersion == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(">= " + minVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum version %q: %w", minVersion, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := c.runner.Run(ctx, name, "-version")
	if err != nil {
		return fmt.Errorf("probe %s version: %w", name, err)
	}

	out := append(res.Stdout, res.Stderr...)
	match := versionRE.FindSubmatch(out)
	if match == nil {
		c.logger.Warnf("Could not parse %s version output, skipping version gate", name)
		return nil
	}

	ver, err := semver.NewVersion(string(match[1]))
	if err != nil {
		c.logger.Warnf("Unparseable %s version %q, skipping version gate", name, match[1])
		return nil
	}
	if !constraint.Check(ver) {
		return fmt.Errorf("%s version %s is older than required %s", name, ver, minVersion)
	}
	return nil
}

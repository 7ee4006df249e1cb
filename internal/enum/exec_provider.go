package enum

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Steiner-254/subsentry/internal/extproc"
)

// ExecProvider wraps an external enumeration tool that prints one subdomain
// per line on stdout. Argument templates substitute {{domain}}.
type ExecProvider struct {
	name   string
	tool   string
	args   []string
	runner extproc.Runner
	logger *logrus.Logger
}

var execProviderArgs = map[string][]string{
	"subfinder":   {"-silent", "-d", "{{domain}}"},
	"assetfinder": {"--subs-only", "{{domain}}"},
	"amass":       {"enum", "-passive", "-d", "{{domain}}"},
	"findomain":   {"--quiet", "--target", "{{domain}}"},
}

// NewExecProvider builds a provider for one of the known enumeration tools.
// Unknown tool names get the conventional `<tool> -d <domain>` invocation.
func NewExecProvider(tool string, runner extproc.Runner, logger *logrus.Logger) *ExecProvider {
	if logger == nil {
		logger = logrus.New()
	}
	args, ok := execProviderArgs[tool]
	if !ok {
		args = []string{"-d", "{{domain}}"}
	}
	return &ExecProvider{
		name:   tool,
		tool:   tool,
		args:   args,
		runner: runner,
		logger: logger,
	}
}

func (p *ExecProvider) Name() string { return p.name }

func (p *ExecProvider) Enumerate(ctx context.Context, domain string) ([]string, error) {
	args := make([]string, 0, len(p.args))
	for _, a := range p.args {
		args = append(args, strings.ReplaceAll(a, "{{domain}}", domain))
	}

	res, err := p.runner.Run(ctx, p.tool, args...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", p.tool, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%s exited with code %d: %s", p.tool, res.ExitCode, firstLine(res.Stderr))
	}

	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(res.Stdout))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s output: %w", p.tool, err)
	}

	p.logger.Debugf("%s returned %d names for %s", p.tool, len(names), domain)
	return names, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return s
}

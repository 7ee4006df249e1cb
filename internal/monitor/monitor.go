package monitor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Steiner-254/subsentry/internal/classify"
	"github.com/Steiner-254/subsentry/internal/delta"
	"github.com/Steiner-254/subsentry/internal/dispatch"
	"github.com/Steiner-254/subsentry/internal/enum"
	"github.com/Steiner-254/subsentry/internal/extproc"
	"github.com/Steiner-254/subsentry/internal/notify"
	"github.com/Steiner-254/subsentry/internal/state"
	"github.com/Steiner-254/subsentry/pkg/models"
	"github.com/Steiner-254/subsentry/pkg/utils"
)

// Monitor owns one loop per configured domain. Loops run concurrently and
// independently: a fatal condition in one domain's state never stops the
// others.
type Monitor struct {
	cfg      *models.MonitorConfig
	loops    []*Loop
	store    *state.Store
	eventLog *state.EventLog
	metrics  *utils.MetricsCollector
	logger   *logrus.Logger
}

func New(cfg *models.MonitorConfig, logger *logrus.Logger) (*Monitor, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := state.NewStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	eventLog := state.NewEventLog(cfg.DataDir)
	runner := extproc.NewExecRunner(logger)
	checker := extproc.NewChecker(runner, logger)

	var providers []enum.Provider
	for _, tool := range cfg.Enum.Providers {
		if !checker.Available(tool) {
			logger.Warnf("Enumeration tool %s not found on PATH, skipping", tool)
			continue
		}
		providers = append(providers, enum.NewExecProvider(tool, runner, logger))
	}
	if len(cfg.Enum.CTLogs) > 0 {
		ctProvider, err := enum.NewCTLogProvider(cfg.Enum.CTLogs, logger)
		if err != nil {
			logger.Warnf("CT log provider unavailable: %v", err)
		} else {
			providers = append(providers, ctProvider)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no usable enumeration providers")
	}

	if !checker.Available(cfg.Scan.Engine) {
		logger.Warnf("Scan engine %s not found on PATH; scan jobs will fail until it is installed", cfg.Scan.Engine)
	} else if err := checker.CheckVersion(context.Background(), cfg.Scan.Engine, cfg.Scan.MinVersion); err != nil {
		logger.Warnf("Scan engine version check: %v", err)
	}

	var resolver *enum.Resolver
	if cfg.Enum.ResolveNew {
		resolver = enum.NewResolver(cfg.Enum.Nameserver, logger)
	}

	collector := utils.NewMetricsCollector(true)
	deps := LoopDeps{
		Poller:     enum.NewPoller(providers, logger),
		Resolver:   resolver,
		Engine:     delta.NewEngine(store, logger),
		Dispatcher: dispatch.NewDispatcher(dispatch.NewExecEngine(cfg.Scan.Engine, cfg.Scan.Args, runner), store, eventLog, cfg.Scan.Timeout, logger),
		Classifier: classify.NewClassifier(store, logger),
		Notifier:   notify.NewNotifier(cfg.Notify, eventLog, logger),
		Store:      store,
		EventLog:   eventLog,
		Clock:      NewRealClock(),
		Metrics:    NewMetrics(collector),
		Logger:     logger,
	}

	m := &Monitor{
		cfg:      cfg,
		store:    store,
		eventLog: eventLog,
		metrics:  collector,
		logger:   logger,
	}
	for _, domain := range cfg.Domains {
		m.loops = append(m.loops, NewLoop(domain, cfg, deps))
	}
	return m, nil
}

// Run starts every domain loop plus the optional metrics endpoint and blocks
// until the context is cancelled. Domain-fatal errors are logged and absorbed
// so the remaining domains keep running.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Infof("Monitoring %d domains every %v", len(m.loops), m.cfg.Interval)

	g, ctx := errgroup.WithContext(ctx)

	if m.cfg.Metrics.Enabled {
		g.Go(func() error {
			if err := m.metrics.StartServerWithContext(ctx, m.cfg.Metrics.Addr); err != nil {
				m.logger.Errorf("Metrics server: %v", err)
			}
			return nil
		})
	}

	for _, loop := range m.loops {
		loop := loop
		g.Go(func() error {
			if err := loop.Run(ctx); err != nil {
				m.logger.Errorf("Domain loop %s terminated: %v", loop.domain, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if cerr := m.eventLog.Close(); cerr != nil {
		m.logger.Warnf("Closing event log: %v", cerr)
	}
	return err
}

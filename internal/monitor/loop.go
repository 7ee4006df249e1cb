package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Steiner-254/subsentry/internal/classify"
	"github.com/Steiner-254/subsentry/internal/delta"
	"github.com/Steiner-254/subsentry/internal/dispatch"
	"github.com/Steiner-254/subsentry/internal/enum"
	"github.com/Steiner-254/subsentry/internal/notify"
	"github.com/Steiner-254/subsentry/internal/state"
	"github.com/Steiner-254/subsentry/pkg/models"
)

type loopState int

const (
	stateUninitialized loopState = iota
	stateEnumerating
	stateDiffing
	stateIdle
	stateDispatching
	stateClassifying
	stateNotifying
)

func (s loopState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateEnumerating:
		return "enumerating"
	case stateDiffing:
		return "diffing"
	case stateIdle:
		return "idle"
	case stateDispatching:
		return "dispatching"
	case stateClassifying:
		return "classifying"
	case stateNotifying:
		return "notifying"
	}
	return "unknown"
}

// Loop drives one domain through the monitor state machine forever:
// Enumerating → Diffing → (Idle | Dispatching → Classifying → Notifying) →
// Idle, with the configured delay between cycles. Steps for one domain are
// strictly sequential; separate domains run separate loops.
type Loop struct {
	domain     string
	cfg        *models.MonitorConfig
	poller     *enum.Poller
	resolver   *enum.Resolver
	engine     *delta.Engine
	dispatcher *dispatch.Dispatcher
	classifier *classify.Classifier
	notifier   *notify.Notifier
	store      *state.Store
	eventLog   *state.EventLog
	clock      Clock
	metrics    *Metrics
	logger     *logrus.Logger

	state loopState
}

type LoopDeps struct {
	Poller     *enum.Poller
	Resolver   *enum.Resolver
	Engine     *delta.Engine
	Dispatcher *dispatch.Dispatcher
	Classifier *classify.Classifier
	Notifier   *notify.Notifier
	Store      *state.Store
	EventLog   *state.EventLog
	Clock      Clock
	Metrics    *Metrics
	Logger     *logrus.Logger
}

func NewLoop(domain string, cfg *models.MonitorConfig, deps LoopDeps) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	clock := deps.Clock
	if clock == nil {
		clock = NewRealClock()
	}
	return &Loop{
		domain:     domain,
		cfg:        cfg,
		poller:     deps.Poller,
		resolver:   deps.Resolver,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		classifier: deps.Classifier,
		notifier:   deps.Notifier,
		store:      deps.Store,
		eventLog:   deps.EventLog,
		clock:      clock,
		metrics:    deps.Metrics,
		logger:     logger,
		state:      stateUninitialized,
	}
}

// Run executes cycles until the context is cancelled or the domain's state
// store is found corrupt. Cancellation is honored at state transitions, not
// mid-external-call: tool invocations carry their own timeouts.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.store.EnsureDomain(l.domain); err != nil {
		return err
	}

	l.notifier.Notify(ctx, models.NotificationEvent{
		Kind:   models.EventMonitoringStarted,
		Domain: l.domain,
	})

	for {
		err := l.cycle(ctx)
		switch {
		case err == nil:
			l.metrics.CycleCompleted(l.domain)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			l.logger.Infof("Monitor loop for %s stopping", l.domain)
			return nil
		case IsStorageCorruption(err):
			l.eventLog.Append(l.domain, kindStorageCorruption, err.Error())
			l.logger.Errorf("State store corrupt for %s, stopping its loop: %v", l.domain, err)
			return err
		case IsProviderFailure(err):
			// Recoverable: back off for the regular interval and retry.
			l.metrics.ProviderFailure(l.domain)
		default:
			l.logger.Errorf("Cycle failed for %s: %v", l.domain, err)
			l.eventLog.Append(l.domain, kindToolError, err.Error())
		}

		select {
		case <-ctx.Done():
			l.logger.Infof("Monitor loop for %s stopping", l.domain)
			return nil
		case <-l.clock.After(l.cfg.Interval):
		}
	}
}

func (l *Loop) cycle(ctx context.Context) error {
	if err := l.transition(ctx, stateEnumerating); err != nil {
		return err
	}
	enumCtx, cancel := context.WithTimeout(ctx, l.cfg.Enum.Timeout)
	candidates, failed, err := l.poller.Poll(enumCtx, l.domain)
	cancel()
	if err != nil {
		if IsProviderFailure(err) {
			l.eventLog.Append(l.domain, kindProviderFailure,
				fmt.Sprintf("providers=%v", failed))
			l.notifier.Notify(ctx, models.NotificationEvent{
				Kind:   models.EventToolError,
				Domain: l.domain,
				Detail: "all enumeration providers failed",
			})
		}
		return err
	}
	l.metrics.PartialProviderFailures(l.domain, len(failed))
	for _, p := range failed {
		l.eventLog.Append(l.domain, kindPartialProviderFailure, "provider="+p)
	}

	if err := l.transition(ctx, stateDiffing); err != nil {
		return err
	}
	gen, err := l.engine.Advance(l.domain, candidates)
	if err != nil {
		return err
	}

	known, err := l.store.LoadKnown(l.domain)
	if err != nil {
		return err
	}
	l.metrics.KnownSize(l.domain, len(known))

	l.notifier.Notify(ctx, models.NotificationEvent{
		Kind:       models.EventEnumerationComplete,
		Domain:     l.domain,
		Generation: generationNumber(gen),
		Count:      len(known),
	})

	if gen == nil {
		// The common steady state: nothing new this cycle.
		l.logger.Debugf("No new subdomains for %s", l.domain)
		return l.transition(ctx, stateIdle)
	}

	l.metrics.NewSubdomains(l.domain, len(gen.Subdomains))
	if !gen.Initial() {
		l.notifier.Notify(ctx, models.NotificationEvent{
			Kind:       models.EventNewSubdomains,
			Domain:     l.domain,
			Generation: gen.Number,
			Count:      len(gen.Subdomains),
		})
	}

	if l.resolver != nil {
		resolved := l.resolver.Annotate(ctx, l.domain, gen.Subdomains)
		l.logger.Infof("%d/%d new subdomains of %s currently resolve",
			resolved, len(gen.Subdomains), l.domain)
	}

	if err := l.transition(ctx, stateDispatching); err != nil {
		return err
	}
	l.notifier.Notify(ctx, models.NotificationEvent{
		Kind:       models.EventScanStarted,
		Domain:     l.domain,
		Generation: gen.Number,
		Count:      len(gen.Subdomains),
	})
	job := l.dispatcher.Dispatch(ctx, gen)
	if job.Status == models.ScanJobFailed {
		// Permanent gap for this generation: logged, never retried, and it
		// must not block later generations.
		l.metrics.ScanFailure(l.domain)
		l.notifier.Notify(ctx, models.NotificationEvent{
			Kind:       models.EventToolError,
			Domain:     l.domain,
			Generation: gen.Number,
			Detail:     job.Error,
		})
		return l.transition(ctx, stateIdle)
	}

	if err := l.transition(ctx, stateClassifying); err != nil {
		return err
	}
	res, err := l.classifier.Classify(l.domain, gen.Number)
	if err != nil {
		l.eventLog.Append(l.domain, kindToolError, fmt.Sprintf("classify generation %d: %v", gen.Number, err))
		return l.transition(ctx, stateIdle)
	}
	l.metrics.Findings(l.domain, res.Counts)

	if err := l.transition(ctx, stateNotifying); err != nil {
		return err
	}
	l.notifier.Notify(ctx, models.NotificationEvent{
		Kind:       models.EventScanResults,
		Domain:     l.domain,
		Generation: gen.Number,
		Counts:     res.Counts,
		Artifacts:  res.Artifacts,
	})

	return l.transition(ctx, stateIdle)
}

// transition moves the state machine forward, honoring cancellation at every
// step boundary.
func (l *Loop) transition(ctx context.Context, next loopState) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	l.logger.Debugf("%s: %s -> %s", l.domain, l.state, next)
	l.state = next
	return nil
}

func generationNumber(gen *models.Generation) int {
	if gen == nil {
		return -1
	}
	return gen.Number
}

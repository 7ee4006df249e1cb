package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Steiner-254/subsentry/internal/classify"
	"github.com/Steiner-254/subsentry/internal/delta"
	"github.com/Steiner-254/subsentry/internal/dispatch"
	"github.com/Steiner-254/subsentry/internal/enum"
	"github.com/Steiner-254/subsentry/internal/notify"
	"github.com/Steiner-254/subsentry/internal/state"
	"github.com/Steiner-254/subsentry/pkg/models"
)

// stepClock fires the inter-cycle timer immediately for a fixed number of
// cycles, then cancels the context so Run returns.
type stepClock struct {
	remaining int
	cancel    context.CancelFunc
}

func (c *stepClock) Now() time.Time { return time.Now() }

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	if c.remaining > 0 {
		c.remaining--
		ch <- time.Now()
	} else {
		c.cancel()
	}
	return ch
}

// scriptedProvider replays one candidate batch per cycle, repeating the last
// batch once exhausted.
type scriptedProvider struct {
	batches [][]string
	calls   int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Enumerate(ctx context.Context, domain string) ([]string, error) {
	i := p.calls
	if i >= len(p.batches) {
		i = len(p.batches) - 1
	}
	p.calls++
	return p.batches[i], nil
}

type failingProvider struct{}

func (failingProvider) Name() string { return "broken" }

func (failingProvider) Enumerate(ctx context.Context, domain string) ([]string, error) {
	return nil, errors.New("connection refused")
}

// scriptedEngine records the target list of each scan invocation and writes a
// scripted raw artifact.
type scriptedEngine struct {
	outputs []string
	exits   []int
	lists   [][]string
}

func (e *scriptedEngine) Scan(ctx context.Context, listPath, outPath string) (int, error) {
	call := len(e.lists)
	data, err := os.ReadFile(listPath)
	if err != nil {
		return -1, fmt.Errorf("read target list: %w", err)
	}
	var targets []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			targets = append(targets, line)
		}
	}
	e.lists = append(e.lists, targets)

	exit := 0
	if call < len(e.exits) {
		exit = e.exits[call]
	}
	if exit != 0 {
		return exit, nil
	}
	out := ""
	if call < len(e.outputs) {
		out = e.outputs[call]
	}
	return 0, os.WriteFile(outPath, []byte(out), 0o644)
}

// webhookRecorder captures delivered notifications in order.
type webhookRecorder struct {
	mu       sync.Mutex
	kinds    []string
	contents []string
	status   int
}

func (w *webhookRecorder) handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var p struct {
			Content string `json:"content"`
			Embeds  []struct {
				Title string `json:"title"`
			} `json:"embeds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&p)
		w.mu.Lock()
		if len(p.Embeds) > 0 {
			w.kinds = append(w.kinds, p.Embeds[0].Title)
		}
		w.contents = append(w.contents, p.Content)
		w.mu.Unlock()
		if w.status != 0 {
			rw.WriteHeader(w.status)
		}
	}
}

func (w *webhookRecorder) kindSeq() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.kinds...)
}

func (w *webhookRecorder) contentSeq() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.contents...)
}

type logBuffer struct {
	bytes.Buffer
}

func (b *logBuffer) Close() error { return nil }

type loopFixture struct {
	loop     *Loop
	store    *state.Store
	engine   *scriptedEngine
	recorder *webhookRecorder
	events   *logBuffer
	ctx      context.Context
}

// newLoopFixture wires a loop for example.com against fakes: scripted
// providers and scan engine, immediate clock, webhook sink owned by the test.
func newLoopFixture(t *testing.T, providers []enum.Provider, engine *scriptedEngine, cycles int, webhookStatus int) *loopFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dataDir := t.TempDir()
	store, err := state.NewStore(dataDir, logger)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	recorder := &webhookRecorder{status: webhookStatus}
	srv := httptest.NewServer(recorder.handler())
	t.Cleanup(srv.Close)

	events := &logBuffer{}
	eventLog := state.NewEventLogWithWriter(events)

	cfg := &models.MonitorConfig{
		Domains:  []string{"example.com"},
		DataDir:  dataDir,
		Interval: time.Millisecond,
		Enum:     models.EnumConfig{Timeout: time.Minute},
		Scan:     models.ScanConfig{Engine: "scripted", Timeout: time.Minute},
		Notify:   models.NotifyConfig{WebhookURL: srv.URL, Timeout: 5 * time.Second},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	deps := LoopDeps{
		Poller:     enum.NewPoller(providers, logger),
		Engine:     delta.NewEngine(store, logger),
		Dispatcher: dispatch.NewDispatcher(engine, store, eventLog, time.Minute, logger),
		Classifier: classify.NewClassifier(store, logger),
		Notifier:   notify.NewNotifier(cfg.Notify, eventLog, logger),
		Store:      store,
		EventLog:   eventLog,
		Clock:      &stepClock{remaining: cycles - 1, cancel: cancel},
		Logger:     logger,
	}

	return &loopFixture{
		loop:     NewLoop("example.com", cfg, deps),
		store:    store,
		engine:   engine,
		recorder: recorder,
		events:   events,
		ctx:      ctx,
	}
}

func TestLoopFirstAndSecondCycle(t *testing.T) {
	provider := &scriptedProvider{batches: [][]string{
		{"a.example.com", "b.example.com"},
		{"a.example.com", "b.example.com", "c.example.com"},
	}}
	engine := &scriptedEngine{
		outputs: []string{"", "[exposed-panel] [high] grafana at c.example.com\n"},
	}
	f := newLoopFixture(t, []enum.Provider{provider}, engine, 2, 0)

	if err := f.loop.Run(f.ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantKinds := []string{
		"monitoring_started",
		// Cycle one: initial enumeration, no new-subdomains announcement.
		"enumeration_complete",
		"scan_started",
		"scan_results",
		// Cycle two: incremental diff.
		"enumeration_complete",
		"new_subdomains",
		"scan_started",
		"scan_results",
	}
	got := f.recorder.kindSeq()
	if strings.Join(got, ",") != strings.Join(wantKinds, ",") {
		t.Fatalf("notification kinds = %v, want %v", got, wantKinds)
	}

	contents := f.recorder.contentSeq()
	if !strings.Contains(contents[1], "initial enumeration complete, 2 subdomains") {
		t.Errorf("cycle one enumeration message: %q", contents[1])
	}
	if !strings.Contains(contents[3], "p1:0 p2:0 p3:0 p4:0 p5:0") {
		t.Errorf("cycle one results message: %q", contents[3])
	}
	if !strings.Contains(contents[5], "1 new subdomains found (generation 1)") {
		t.Errorf("cycle two diff message: %q", contents[5])
	}
	if !strings.Contains(contents[7], "p1:0 p2:1 p3:0 p4:0 p5:0") {
		t.Errorf("cycle two results message: %q", contents[7])
	}

	// The second generation is scanned alone.
	if len(engine.lists) != 2 {
		t.Fatalf("scan invocations = %d, want 2", len(engine.lists))
	}
	if strings.Join(engine.lists[0], ",") != "a.example.com,b.example.com" {
		t.Errorf("generation 0 targets = %v", engine.lists[0])
	}
	if strings.Join(engine.lists[1], ",") != "c.example.com" {
		t.Errorf("generation 1 targets = %v", engine.lists[1])
	}

	if n, err := f.store.CountScanned("example.com"); err != nil || n != 3 {
		t.Errorf("scanned ledger = (%d, %v), want 3 entries", n, err)
	}
	if latest, _ := f.store.LatestGeneration("example.com"); latest != 1 {
		t.Errorf("latest generation = %d, want 1", latest)
	}
}

func TestLoopScanFailureLeavesGapAndContinues(t *testing.T) {
	provider := &scriptedProvider{batches: [][]string{
		{"a.example.com"},
		{"a.example.com", "b.example.com"},
	}}
	engine := &scriptedEngine{exits: []int{2, 0}}
	f := newLoopFixture(t, []enum.Provider{provider}, engine, 2, 0)

	if err := f.loop.Run(f.ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	kinds := f.recorder.kindSeq()
	wantKinds := []string{
		"monitoring_started",
		"enumeration_complete",
		"scan_started",
		"tool_error",
		"enumeration_complete",
		"new_subdomains",
		"scan_started",
		"scan_results",
	}
	if strings.Join(kinds, ",") != strings.Join(wantKinds, ",") {
		t.Fatalf("notification kinds = %v, want %v", kinds, wantKinds)
	}

	// The failed generation is a permanent gap: only b.example.com is ever
	// recorded as scanned, and generation numbering still advances.
	if n, _ := f.store.CountScanned("example.com"); n != 1 {
		t.Errorf("scanned ledger = %d entries, want 1", n)
	}
	if strings.Join(engine.lists[1], ",") != "b.example.com" {
		t.Errorf("second scan targets = %v", engine.lists[1])
	}
	if !strings.Contains(f.events.String(), "kind=scan_failure") {
		t.Errorf("event log missing scan failure: %q", f.events.String())
	}
	if latest, _ := f.store.LatestGeneration("example.com"); latest != 1 {
		t.Errorf("latest generation = %d, want 1", latest)
	}
}

func TestLoopNotificationFailureDoesNotEscape(t *testing.T) {
	provider := &scriptedProvider{batches: [][]string{{"a.example.com"}}}
	engine := &scriptedEngine{}
	f := newLoopFixture(t, []enum.Provider{provider}, engine, 1, http.StatusInternalServerError)

	if err := f.loop.Run(f.ctx); err != nil {
		t.Fatalf("Run returned %v, notification failures must stay local", err)
	}
	if !strings.Contains(f.events.String(), "kind=notification_failure") {
		t.Errorf("event log missing notification failure: %q", f.events.String())
	}
	// The pipeline still completed: the generation was scanned and classified.
	if n, _ := f.store.CountScanned("example.com"); n != 1 {
		t.Errorf("scanned ledger = %d entries, want 1", n)
	}
}

func TestLoopAllProvidersFailedRetriesNextInterval(t *testing.T) {
	engine := &scriptedEngine{}
	f := newLoopFixture(t, []enum.Provider{failingProvider{}}, engine, 2, 0)

	if err := f.loop.Run(f.ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(f.events.String(), "kind=provider_failure") {
		t.Errorf("event log missing provider failure: %q", f.events.String())
	}
	if len(engine.lists) != 0 {
		t.Errorf("scan ran despite failed enumeration: %v", engine.lists)
	}
	if latest, _ := f.store.LatestGeneration("example.com"); latest != -1 {
		t.Errorf("generation committed despite failed enumeration: %d", latest)
	}
}

func TestLoopStopsOnStorageCorruption(t *testing.T) {
	provider := &scriptedProvider{batches: [][]string{{"a.example.com"}}}
	engine := &scriptedEngine{}
	f := newLoopFixture(t, []enum.Provider{provider}, engine, 1, 0)

	if err := f.store.EnsureDomain("example.com"); err != nil {
		t.Fatalf("EnsureDomain: %v", err)
	}
	path := filepath.Join(f.store.DomainDir("example.com"), "known.txt")
	corrupt := "#sum blake2b 0000000000000000000000000000000000000000000000000000000000000000\na.example.com\n"
	if err := os.WriteFile(path, []byte(corrupt), 0o644); err != nil {
		t.Fatalf("write corrupt known set: %v", err)
	}

	err := f.loop.Run(f.ctx)
	if !IsStorageCorruption(err) {
		t.Fatalf("Run = %v, want storage corruption", err)
	}
	if !strings.Contains(f.events.String(), "kind=storage_corruption") {
		t.Errorf("event log missing corruption entry: %q", f.events.String())
	}
}

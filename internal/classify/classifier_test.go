package classify

import (
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Steiner-254/subsentry/internal/state"
	"github.com/Steiner-254/subsentry/pkg/models"
)

func newTestClassifier(t *testing.T) (*Classifier, *state.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store, err := state.NewStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewClassifier(store, logger), store
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

func TestClassifyBucketsBySeverity(t *testing.T) {
	c, store := newTestClassifier(t)
	const domain = "example.com"
	if err := store.EnsureDomain(domain); err != nil {
		t.Fatalf("EnsureDomain: %v", err)
	}

	raw := strings.Join([]string{
		"[http-title] [info] Welcome to nginx on a.example.com",
		"[tls-version] [info] TLS 1.2 on b.example.com",
		"[ssl-issuer] [low] self-signed cert on c.example.com",
		"[exposed-panel] [high] grafana at d.example.com",
		"[exposed-panel] [high] jenkins at e.example.com",
		"[default-login] [high] tomcat at f.example.com",
		"[cve-2021-44228] [critical] log4j at g.example.com",
	}, "\n") + "\n"
	if err := os.WriteFile(store.RawScanPath(domain, 1), []byte(raw), 0o644); err != nil {
		t.Fatalf("write raw artifact: %v", err)
	}

	res, err := c.Classify(domain, 1)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	want := models.BucketCounts{Critical: 1, High: 3, Medium: 0, Low: 1, Info: 2}
	if res.Counts != want {
		t.Fatalf("Counts = %+v, want %+v", res.Counts, want)
	}
	if res.Counts.Total() != 7 {
		t.Errorf("Total() = %d, want 7 (every line lands in exactly one bucket)", res.Counts.Total())
	}

	if len(res.Artifacts) != 5 {
		t.Fatalf("got %d artifacts, want 5", len(res.Artifacts))
	}
	wantLines := map[string]int{"p1": 1, "p2": 3, "p3": 0, "p4": 1, "p5": 2}
	for label, n := range wantLines {
		path := store.BucketPath(domain, 1, label)
		if got := countLines(t, path); got != n {
			t.Errorf("%s bucket has %d lines, want %d", label, got, n)
		}
	}
}

func TestClassifyAbsentRawArtifact(t *testing.T) {
	c, store := newTestClassifier(t)
	const domain = "example.com"
	if err := store.EnsureDomain(domain); err != nil {
		t.Fatalf("EnsureDomain: %v", err)
	}

	res, err := c.Classify(domain, 0)
	if err != nil {
		t.Fatalf("Classify on absent artifact: %v", err)
	}
	if res.Counts.Total() != 0 {
		t.Errorf("Counts = %+v, want all zero", res.Counts)
	}
	// Empty buckets are still written so downstream consumers see a complete
	// artifact set for the generation.
	for _, label := range []string{"p1", "p2", "p3", "p4", "p5"} {
		path := store.BucketPath(domain, 0, label)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("bucket %s not written: %v", label, err)
		}
	}
}

func TestClassifyKeywordlessLinesDefaultToInfo(t *testing.T) {
	c, store := newTestClassifier(t)
	const domain = "example.com"
	if err := store.EnsureDomain(domain); err != nil {
		t.Fatalf("EnsureDomain: %v", err)
	}

	raw := "plain scanner chatter without a severity\nanother line\n"
	if err := os.WriteFile(store.RawScanPath(domain, 2), []byte(raw), 0o644); err != nil {
		t.Fatalf("write raw artifact: %v", err)
	}

	res, err := c.Classify(domain, 2)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Counts.Info != 2 || res.Counts.Total() != 2 {
		t.Errorf("Counts = %+v, want every line counted as info", res.Counts)
	}
}

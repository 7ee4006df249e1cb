package classify

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Steiner-254/subsentry/internal/state"
	"github.com/Steiner-254/subsentry/pkg/models"
)

// Classifier partitions a raw scan artifact into the five severity buckets
// and persists each bucket as a priority-labeled artifact (critical=p1
// through info=p5).
type Classifier struct {
	store  *state.Store
	logger *logrus.Logger
}

func NewClassifier(store *state.Store, logger *logrus.Logger) *Classifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &Classifier{store: store, logger: logger}
}

// Result carries the classified counts and the artifact paths written for one
// generation.
type Result struct {
	Counts    models.BucketCounts
	Artifacts []string
}

// Classify reads the raw scan artifact of a generation and writes the five
// bucket artifacts. An empty or absent raw artifact is a valid result: all
// buckets are written empty and zero counts are returned without error.
func (c *Classifier) Classify(domain string, generation int) (*Result, error) {
	rawPath := c.store.RawScanPath(domain, generation)

	findings, err := readFindings(rawPath)
	if err != nil {
		return nil, fmt.Errorf("read raw scan artifact: %w", err)
	}

	buckets := make(map[models.Severity][]string)
	var counts models.BucketCounts
	for _, f := range findings {
		buckets[f.Severity] = append(buckets[f.Severity], f.Raw)
		counts.Add(f.Severity, 1)
	}

	res := &Result{Counts: counts}
	for _, sev := range models.SeveritiesByPriority {
		path := c.store.BucketPath(domain, generation, sev.PriorityLabel())
		content := ""
		if lines := buckets[sev]; len(lines) > 0 {
			content = strings.Join(lines, "\n") + "\n"
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s bucket: %w", sev.PriorityLabel(), err)
		}
		res.Artifacts = append(res.Artifacts, path)
	}

	if counts.Total() == 0 {
		c.logger.Infof("No findings for %s generation %d", domain, generation)
	} else {
		c.logger.Infof("Classified %d findings for %s generation %d: %s",
			counts.Total(), domain, generation, counts.String())
	}
	return res, nil
}

func readFindings(path string) ([]models.Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var findings []models.Finding
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		findings = append(findings, models.ParseFinding(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return findings, nil
}

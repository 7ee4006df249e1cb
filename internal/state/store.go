package state

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/Steiner-254/subsentry/pkg/models"
)

// ErrCorrupt marks an unreadable or checksum-failing state artifact. It is
// fatal for the affected domain's loop: reinitializing a known set would make
// every known subdomain look new again.
var ErrCorrupt = errors.New("state artifact corrupt")

const (
	knownFile     = "known.txt"
	scannedFile   = "scanned.txt"
	indexFile     = "generations.yaml"
	sumHeaderTag  = "#sum blake2b "
	rawFilePrefix = "scan-n"
)

// Store owns all durable per-domain monitoring state: the known set,
// generation files, scan artifacts, severity buckets and the scanned ledger.
// Each domain's files live in their own directory; concurrent loops for
// different domains never contend on the same files.
type Store struct {
	baseDir string
	logger  *logrus.Logger
	mu      sync.Mutex
}

func NewStore(baseDir string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{baseDir: baseDir, logger: logger}, nil
}

func (s *Store) DomainDir(domain string) string {
	return filepath.Join(s.baseDir, domain)
}

func (s *Store) EnsureDomain(domain string) error {
	if err := os.MkdirAll(s.DomainDir(domain), 0o755); err != nil {
		return fmt.Errorf("create domain directory for %s: %w", domain, err)
	}
	return nil
}

func (s *Store) GenerationPath(domain string, number int) string {
	return filepath.Join(s.DomainDir(domain), fmt.Sprintf("%s-n%d.txt", domain, number))
}

func (s *Store) RawScanPath(domain string, number int) string {
	return filepath.Join(s.DomainDir(domain), fmt.Sprintf("%s%d.txt", rawFilePrefix, number))
}

func (s *Store) BucketPath(domain string, number int, priorityLabel string) string {
	return filepath.Join(s.DomainDir(domain), fmt.Sprintf("%s-n%d.txt", priorityLabel, number))
}

// LoadKnown reads and verifies the known set. A missing file is an empty set;
// a checksum mismatch or unreadable file is ErrCorrupt.
func (s *Store) LoadKnown(domain string) (map[string]bool, error) {
	data, err := os.ReadFile(filepath.Join(s.DomainDir(domain), knownFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("%w: read known set for %s: %v", ErrCorrupt, domain, err)
	}

	lines := strings.Split(string(data), "\n")
	known := make(map[string]bool)
	start := 0
	if len(lines) > 0 && strings.HasPrefix(lines[0], sumHeaderTag) {
		wantHex := strings.TrimSpace(strings.TrimPrefix(lines[0], sumHeaderTag))
		body := strings.Join(lines[1:], "\n")
		got := blake2b.Sum256([]byte(body))
		if hex.EncodeToString(got[:]) != wantHex {
			return nil, fmt.Errorf("%w: known set checksum mismatch for %s", ErrCorrupt, domain)
		}
		start = 1
	}
	for _, line := range lines[start:] {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		known[line] = true
	}
	return known, nil
}

// AppendKnown adds names to the known set. The file is rewritten as a whole
// and renamed into place so the set and its embedded checksum always change
// together; the set only ever grows. Re-appending names that are already
// present is a no-op.
func (s *Store) AppendKnown(domain string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known, err := s.LoadKnown(domain)
	if err != nil {
		return err
	}

	existing := make([]string, 0, len(known))
	for name := range known {
		existing = append(existing, name)
	}
	sort.Strings(existing)

	added := 0
	for _, name := range names {
		if !known[name] {
			existing = append(existing, name)
			known[name] = true
			added++
		}
	}
	if added == 0 {
		return nil
	}

	var body strings.Builder
	for _, name := range existing {
		body.WriteString(name)
		body.WriteByte('\n')
	}
	sum := blake2b.Sum256([]byte(body.String()))
	content := sumHeaderTag + hex.EncodeToString(sum[:]) + "\n" + body.String()

	path := filepath.Join(s.DomainDir(domain), knownFile)
	if err := s.writeAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("write known set for %s: %w", domain, err)
	}
	s.logger.Debugf("Known set for %s grew by %d to %d entries", domain, added, len(known))
	return nil
}

// WriteGeneration persists one generation file atomically and records it in
// the generation index with an xxh3 content fingerprint. Writing the same
// generation number with the same content again is idempotent.
func (s *Store) WriteGeneration(gen *models.Generation) error {
	if err := gen.Validate(); err != nil {
		return err
	}

	members := append([]string(nil), gen.Subdomains...)
	sort.Strings(members)
	content := strings.Join(members, "\n") + "\n"

	gen.Count = len(members)
	gen.Fingerprint = fmt.Sprintf("%016x", xxh3.HashString(content))
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now().UTC()
	}

	path := s.GenerationPath(gen.Domain, gen.Number)
	if err := s.writeAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("write generation %d for %s: %w", gen.Number, gen.Domain, err)
	}

	return s.indexGeneration(gen)
}

func (s *Store) indexGeneration(gen *models.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gens, err := s.loadIndex(gen.Domain)
	if err != nil {
		return err
	}
	for i, g := range gens {
		if g.Number == gen.Number {
			gens[i] = *gen
			return s.saveIndex(gen.Domain, gens)
		}
	}
	gens = append(gens, *gen)
	sort.Slice(gens, func(i, j int) bool { return gens[i].Number < gens[j].Number })
	return s.saveIndex(gen.Domain, gens)
}

// Generations returns the committed generation records in order.
func (s *Store) Generations(domain string) ([]models.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadIndex(domain)
}

var genFileRE = regexp.MustCompile(`-n(\d+)\.txt$`)

// LatestGeneration returns the highest generation number present on disk for
// the domain, or -1 if none exists. Disk is authoritative over the index so a
// crash between the generation write and the index update cannot cause a
// number to be reused for different content.
func (s *Store) LatestGeneration(domain string) (int, error) {
	entries, err := os.ReadDir(s.DomainDir(domain))
	if err != nil {
		if os.IsNotExist(err) {
			return -1, nil
		}
		return -1, fmt.Errorf("read domain directory for %s: %w", domain, err)
	}
	latest := -1
	prefix := domain + "-n"
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		m := genFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > latest {
			latest = n
		}
	}
	return latest, nil
}

// LoadGeneration reads the members of one committed generation file.
func (s *Store) LoadGeneration(domain string, number int) ([]string, error) {
	f, err := os.Open(s.GenerationPath(domain, number))
	if err != nil {
		return nil, fmt.Errorf("open generation %d for %s: %w", number, domain, err)
	}
	defer f.Close()

	var members []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			members = append(members, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read generation %d for %s: %w", number, domain, err)
	}
	return members, nil
}

// AppendScanned records subdomains that completed at least one scan job. The
// ledger is audit-only and never consulted to suppress rescans.
func (s *Store) AppendScanned(domain string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.DomainDir(domain), scannedFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open scanned ledger for %s: %w", domain, err)
	}
	defer f.Close()

	ts := time.Now().UTC().Format(time.RFC3339)
	for _, name := range names {
		if _, err := fmt.Fprintf(f, "%s %s\n", ts, name); err != nil {
			return fmt.Errorf("append scanned ledger for %s: %w", domain, err)
		}
	}
	return f.Sync()
}

// CountScanned returns the number of scanned-ledger entries for a domain.
func (s *Store) CountScanned(domain string) (int, error) {
	f, err := os.Open(filepath.Join(s.DomainDir(domain), scannedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	return count, scanner.Err()
}

func (s *Store) loadIndex(domain string) ([]models.Generation, error) {
	data, err := os.ReadFile(filepath.Join(s.DomainDir(domain), indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read generation index for %s: %v", ErrCorrupt, domain, err)
	}
	var gens []models.Generation
	if err := yaml.Unmarshal(data, &gens); err != nil {
		return nil, fmt.Errorf("%w: parse generation index for %s: %v", ErrCorrupt, domain, err)
	}
	return gens, nil
}

func (s *Store) saveIndex(domain string, gens []models.Generation) error {
	data, err := yaml.Marshal(gens)
	if err != nil {
		return fmt.Errorf("marshal generation index for %s: %w", domain, err)
	}
	path := filepath.Join(s.DomainDir(domain), indexFile)
	if err := s.writeAtomic(path, data); err != nil {
		return fmt.Errorf("write generation index for %s: %w", domain, err)
	}
	return nil
}

func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

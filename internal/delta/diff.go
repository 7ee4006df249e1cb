package delta

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Steiner-254/subsentry/internal/state"
	"github.com/Steiner-254/subsentry/pkg/models"
)

// Diff returns candidates − known, sorted. It is a pure function: the common
// case of an empty result means the cycle found nothing new and no generation
// is warranted.
func Diff(candidates []string, known map[string]bool) []string {
	var fresh []string
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if !known[c] && !seen[c] {
			seen[c] = true
			fresh = append(fresh, c)
		}
	}
	sort.Strings(fresh)
	return fresh
}

// Engine commits non-empty diffs as new generations against the state store.
type Engine struct {
	store  *state.Store
	logger *logrus.Logger
}

func NewEngine(store *state.Store, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{store: store, logger: logger}
}

// Advance computes the diff of candidates against the domain's known set and,
// if non-empty, commits it as the next generation: the generation file is
// persisted first, then the names are appended to the known set. Both steps
// are idempotent, so a crash between them is repaired by the next cycle
// re-committing the same content under the same number.
//
// Returns the committed generation, or nil when the diff was empty.
func (e *Engine) Advance(domain string, candidates []string) (*models.Generation, error) {
	known, err := e.store.LoadKnown(domain)
	if err != nil {
		return nil, err
	}

	fresh := Diff(candidates, known)
	if len(fresh) == 0 {
		return nil, nil
	}

	number, err := e.nextNumber(domain, fresh, known)
	if err != nil {
		return nil, err
	}

	gen := &models.Generation{
		Domain:     domain,
		Number:     number,
		Subdomains: fresh,
	}
	if err := e.store.WriteGeneration(gen); err != nil {
		return nil, err
	}
	if err := e.store.AppendKnown(domain, fresh); err != nil {
		return nil, fmt.Errorf("append known set after generation %d: %w", number, err)
	}

	e.logger.Infof("Committed generation %d for %s: %d new subdomains", number, domain, len(fresh))
	return gen, nil
}

// nextNumber assigns a monotonic, gapless generation number. If the latest
// on-disk generation holds exactly the pending diff and its members never
// made it into the known set, a previous commit was interrupted and its
// number is reused so the retry stays idempotent.
func (e *Engine) nextNumber(domain string, fresh []string, known map[string]bool) (int, error) {
	latest, err := e.store.LatestGeneration(domain)
	if err != nil {
		return 0, err
	}
	if latest < 0 {
		return 0, nil
	}

	members, err := e.store.LoadGeneration(domain, latest)
	if err != nil {
		return 0, err
	}
	if sameSet(members, fresh) && noneKnown(members, known) {
		e.logger.Warnf("Re-committing interrupted generation %d for %s", latest, domain)
		return latest, nil
	}
	return latest + 1, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

func noneKnown(names []string, known map[string]bool) bool {
	for _, n := range names {
		if known[n] {
			return false
		}
	}
	return true
}

package enum

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrAllProvidersFailed is returned when no provider produced output for a
// cycle. The caller must not advance the domain's state; the next scheduled
// interval retries.
var ErrAllProvidersFailed = errors.New("all enumeration providers failed")

// Poller fans a domain out to every configured provider and unions the
// normalized results. Partial provider failure is non-fatal: monitoring
// availability wins over completeness of any single cycle.
type Poller struct {
	providers []Provider
	logger    *logrus.Logger
}

func NewPoller(providers []Provider, logger *logrus.Logger) *Poller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Poller{providers: providers, logger: logger}
}

// Poll returns the deduplicated, normalized, in-scope union of all provider
// output, sorted for deterministic downstream artifacts. The returned failed
// slice names the providers that errored this cycle.
func (p *Poller) Poll(ctx context.Context, domain string) (candidates []string, failed []string, err error) {
	type result struct {
		provider string
		names    []string
		err      error
	}
	results := make(chan result, len(p.providers))

	var wg sync.WaitGroup
	for _, prov := range p.providers {
		wg.Add(1)
		go func(prov Provider) {
			defer wg.Done()
			names, err := prov.Enumerate(ctx, domain)
			results <- result{provider: prov.Name(), names: names, err: err}
		}(prov)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	succeeded := 0
	for r := range results {
		if r.err != nil {
			p.logger.Warnf("Provider %s failed for %s: %v", r.provider, domain, r.err)
			failed = append(failed, r.provider)
			continue
		}
		succeeded++
		for _, raw := range r.names {
			name, ok := Normalize(raw)
			if !ok || !InScope(name, domain) {
				continue
			}
			if !seen[name] {
				seen[name] = true
				candidates = append(candidates, name)
			}
		}
	}

	if succeeded == 0 {
		return nil, failed, ErrAllProvidersFailed
	}

	sort.Strings(candidates)
	sort.Strings(failed)
	p.logger.Infof("Enumeration for %s: %d unique candidates from %d/%d providers",
		domain, len(candidates), succeeded, len(p.providers))
	return candidates, failed, nil
}

package enum

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/client"
	"github.com/google/certificate-transparency-go/jsonclient"
	ctX509 "github.com/google/certificate-transparency-go/x509"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const ctBatchSize = 256

// CTLogProvider enumerates subdomains out of certificate-transparency logs.
// It needs no external tooling, so the monitor stays functional on a bare
// host. Each poll reads the newest window of every configured log.
type CTLogProvider struct {
	clients map[string]*client.LogClient
	limiter *rate.Limiter
	logger  *logrus.Logger
	window  int64
	mu      sync.RWMutex
}

func NewCTLogProvider(logURLs []string, logger *logrus.Logger) (*CTLogProvider, error) {
	if logger == nil {
		logger = logrus.New()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 30 * time.Second,
	}

	p := &CTLogProvider{
		clients: make(map[string]*client.LogClient),
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		logger:  logger,
		window:  4 * ctBatchSize,
	}

	for _, u := range logURLs {
		lc, err := client.New(u, httpClient, jsonclient.Options{UserAgent: "subsentry/1.0 ct fetcher"})
		if err != nil {
			logger.Warnf("Failed to initialize CT log client for %s: %v", u, err)
			continue
		}
		p.clients[u] = lc
	}
	if len(p.clients) == 0 {
		return nil, fmt.Errorf("no usable CT logs out of %d configured", len(logURLs))
	}
	return p, nil
}

func (p *CTLogProvider) Name() string { return "ctlogs" }

func (p *CTLogProvider) Enumerate(ctx context.Context, domain string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var (
		all []string
		mu  sync.Mutex
	)
	g, ctx := errgroup.WithContext(ctx)

	for url, lc := range p.clients {
		url, lc := url, lc
		g.Go(func() error {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
			names, err := p.enumerateLog(ctx, lc, domain)
			if err != nil {
				p.logger.Warnf("CT log %s: %v", url, err)
				return nil
			}
			mu.Lock()
			all = append(all, names...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func (p *CTLogProvider) enumerateLog(ctx context.Context, lc *client.LogClient, domain string) ([]string, error) {
	sth, err := lc.GetSTH(ctx)
	if err != nil {
		return nil, fmt.Errorf("get STH: %w", err)
	}

	end := int64(sth.TreeSize) - 1
	if end < 0 {
		return nil, nil
	}
	start := end - p.window + 1
	if start < 0 {
		start = 0
	}

	var names []string
	for batchStart := start; batchStart <= end; batchStart += ctBatchSize {
		batchEnd := batchStart + ctBatchSize - 1
		if batchEnd > end {
			batchEnd = end
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return names, err
		}
		entries, err := lc.GetEntries(ctx, batchStart, batchEnd)
		if err != nil {
			return names, fmt.Errorf("get entries [%d,%d]: %w", batchStart, batchEnd, err)
		}
		for i := range entries {
			names = append(names, certNamesForDomain(&entries[i], domain)...)
		}
	}
	return names, nil
}

func certNamesForDomain(entry *ct.LogEntry, domain string) []string {
	var cert *ctX509.Certificate
	switch {
	case entry.X509Cert != nil:
		cert = entry.X509Cert
	case entry.Precert != nil:
		pre, err := entry.Leaf.Precertificate()
		if err != nil {
			return nil
		}
		cert = pre
	default:
		return nil
	}

	var out []string
	consider := func(raw string) {
		name, ok := Normalize(raw)
		if !ok {
			return
		}
		if InScope(name, domain) {
			out = append(out, name)
		}
	}
	if cn := strings.TrimSpace(cert.Subject.CommonName); cn != "" {
		consider(cn)
	}
	for _, dns := range cert.DNSNames {
		consider(dns)
	}
	return out
}

package enum

import (
	"context"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Resolver does a best-effort liveness probe of newly-diffed subdomains. A
// name that does not resolve stays in its generation regardless: the known
// set never shrinks and the scan engine makes its own connection decisions.
// Resolution results only enrich the logs.
type Resolver struct {
	client     *dns.Client
	nameserver string
	logger     *logrus.Logger
}

func NewResolver(nameserver string, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	if nameserver == "" {
		nameserver = "8.8.8.8:53"
	}
	return &Resolver{
		client:     &dns.Client{Timeout: 5 * time.Second},
		nameserver: nameserver,
		logger:     logger,
	}
}

// Resolves reports whether the name has at least one A, AAAA or CNAME record.
func (r *Resolver) Resolves(ctx context.Context, name string) bool {
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA, dns.TypeCNAME} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(name), qtype)
		msg.RecursionDesired = true

		resp, _, err := r.client.ExchangeContext(ctx, msg, r.nameserver)
		if err != nil {
			r.logger.Debugf("DNS query %s %s: %v", name, dns.TypeToString[qtype], err)
			continue
		}
		if resp.Rcode == dns.RcodeSuccess && len(resp.Answer) > 0 {
			return true
		}
	}
	return false
}

// Annotate logs resolution status for a batch of names and returns how many
// resolved.
func (r *Resolver) Annotate(ctx context.Context, domain string, names []string) int {
	resolved := 0
	for _, name := range names {
		select {
		case <-ctx.Done():
			return resolved
		default:
		}
		if r.Resolves(ctx, name) {
			resolved++
		} else {
			r.logger.Infof("New subdomain %s of %s does not currently resolve", name, domain)
		}
	}
	return resolved
}

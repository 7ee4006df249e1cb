package enum

import (
	"context"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"

	"github.com/Steiner-254/subsentry/pkg/utils"
)

// Provider enumerates candidate subdomains for a domain. Providers are
// independent: any one failing does not prevent the poller from using the
// output of the others.
type Provider interface {
	Name() string
	Enumerate(ctx context.Context, domain string) ([]string, error)
}

var idnaProfile = idna.New(idna.MapForLookup(), idna.RemoveLeadingDots(true))

var caseFolder = cases.Fold()

// Normalize canonicalizes a candidate name: case-folded, trailing dot
// stripped, wildcard label dropped, punycoded to ASCII. Returns false for
// names that are not valid DNS names after normalization.
func Normalize(name string) (string, bool) {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".")
	name = strings.TrimPrefix(name, "*.")
	if name == "" {
		return "", false
	}

	name = caseFolder.String(name)
	ascii, err := idnaProfile.ToASCII(name)
	if err != nil {
		return "", false
	}
	ascii = strings.ToLower(ascii)
	if !utils.IsValidDomain(ascii) {
		return "", false
	}
	return ascii, true
}

// InScope reports whether a normalized candidate belongs to the monitored
// domain: same registrable domain and within its DNS subtree.
func InScope(candidate, domain string) bool {
	if candidate == domain {
		return true
	}
	if !strings.HasSuffix(candidate, "."+domain) {
		return false
	}
	candRoot, err1 := publicsuffix.EffectiveTLDPlusOne(candidate)
	domRoot, err2 := publicsuffix.EffectiveTLDPlusOne(domain)
	if err1 != nil || err2 != nil {
		// Private or unlisted suffixes fall back to the subtree check above.
		return true
	}
	return candRoot == domRoot
}

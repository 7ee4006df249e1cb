package utils

import (
	"regexp"
	"strings"
)

var domainLabelRE = regexp.MustCompile(`^[a-zA-Z0-9\-]+$`)

func IsValidDomain(domain string) bool {
	if domain == "" || len(domain) > 253 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if len(part) == 0 || len(part) > 63 {
			return false
		}
		if !domainLabelRE.MatchString(part) {
			return false
		}
		if part[0] == '-' || part[len(part)-1] == '-' {
			return false
		}
	}
	return true
}

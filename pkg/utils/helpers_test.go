package utils

import "testing"

func TestIsValidDomain(t *testing.T) {
	cases := []struct {
		domain string
		want   bool
	}{
		{"example.com", true},
		{"api.example.com", true},
		{"xn--bcher-kva.example.com", true},
		{"a-b.example.com", true},
		{"", false},
		{"-bad.example.com", false},
		{"bad-.example.com", false},
		{"has space.example.com", false},
		{"double..dot.example.com", false},
		{"under_score.example.com", false},
	}
	for _, c := range cases {
		if got := IsValidDomain(c.domain); got != c.want {
			t.Errorf("IsValidDomain(%q) = %v, want %v", c.domain, got, c.want)
		}
	}
}

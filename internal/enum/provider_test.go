package enum

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"api.example.com", "api.example.com", true},
		{"API.Example.COM", "api.example.com", true},
		{"api.example.com.", "api.example.com", true},
		{"*.staging.example.com", "staging.example.com", true},
		{"  api.example.com \n", "api.example.com", true},
		{"bücher.example.com", "xn--bcher-kva.example.com", true},
		{"", "", false},
		{".", "", false},
		{"*.", "", false},
		{"-bad.example.com", "", false},
		{"just text with spaces", "", false},
	}
	for _, c := range cases {
		got, ok := Normalize(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestInScope(t *testing.T) {
	cases := []struct {
		candidate string
		domain    string
		want      bool
	}{
		{"example.com", "example.com", true},
		{"api.example.com", "example.com", true},
		{"deep.api.example.com", "example.com", true},
		{"example.com.evil.net", "example.com", false},
		{"notexample.com", "example.com", false},
		{"example.org", "example.com", false},
		// Shares the suffix string but is a different registrable domain.
		{"api.example.com", "ple.com", false},
	}
	for _, c := range cases {
		if got := InScope(c.candidate, c.domain); got != c.want {
			t.Errorf("InScope(%q, %q) = %v, want %v", c.candidate, c.domain, got, c.want)
		}
	}
}

package models

import "testing"

func TestParseFinding(t *testing.T) {
	cases := []struct {
		raw  string
		want Severity
	}{
		{"[CVE-2021-44228] [critical] log4j rce on api.example.com", SeverityCritical},
		{"[exposed-panel] [HIGH] grafana login at dash.example.com", SeverityHigh},
		{"[tech-detect] [medium] outdated nginx", SeverityMedium},
		{"[ssl-issuer] [low] self-signed certificate", SeverityLow},
		{"[http-title] [info] Welcome page", SeverityInfo},
		{"bare line with no keyword at all", SeverityInfo},
		{"", SeverityInfo},
	}
	for _, c := range cases {
		got := ParseFinding(c.raw)
		if got.Severity != c.want {
			t.Errorf("ParseFinding(%q).Severity = %s, want %s", c.raw, got.Severity, c.want)
		}
		if got.Raw != c.raw {
			t.Errorf("ParseFinding(%q).Raw = %q", c.raw, got.Raw)
		}
	}
}

func TestParseFindingMostSevereWins(t *testing.T) {
	// A line mentioning several keywords is classified by the most severe one.
	got := ParseFinding("[info] template notes a critical misconfiguration")
	if got.Severity != SeverityCritical {
		t.Fatalf("got %s, want critical", got.Severity)
	}
}

func TestPriorityLabels(t *testing.T) {
	want := map[Severity]string{
		SeverityCritical: "p1",
		SeverityHigh:     "p2",
		SeverityMedium:   "p3",
		SeverityLow:      "p4",
		SeverityInfo:     "p5",
	}
	for sev, label := range want {
		if got := sev.PriorityLabel(); got != label {
			t.Errorf("%s.PriorityLabel() = %s, want %s", sev, got, label)
		}
	}
	if got := Severity("bogus").PriorityLabel(); got != "p5" {
		t.Errorf("unknown severity label = %s, want p5", got)
	}
}

func TestBucketCounts(t *testing.T) {
	var b BucketCounts
	b.Add(SeverityCritical, 1)
	b.Add(SeverityHigh, 3)
	b.Add(SeverityLow, 1)
	b.Add(SeverityInfo, 2)

	if b.Total() != 7 {
		t.Errorf("Total() = %d, want 7", b.Total())
	}
	if got, want := b.String(), "p1:1 p2:3 p3:0 p4:1 p5:2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if b.Get(SeverityMedium) != 0 {
		t.Errorf("Get(medium) = %d, want 0", b.Get(SeverityMedium))
	}
}

package finding

import (
	"sort"
	"testing"
)

func TestSeverityIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    Severity
		want bool
	}{
		{Critical, true},
		{High, true},
		{Medium, true},
		{Low, true},
		{Info, true},
		{"Unknown", false},
		{"", false},
		{"CRITICAL", false}, // case-sensitive
		{"Critical", false}, // must be lowercase
	}
	for _, tt := range tests {
		t.Run(string(tt.s), func(t *testing.T) {
			t.Parallel()
			if got := tt.s.IsValid(); got != tt.want {
				t.Errorf("Severity(%q).IsValid() = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}

func TestSeverityScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s    Severity
		want int
	}{
		{Critical, 5},
		{High, 4},
		{Medium, 3},
		{Low, 2},
		{Info, 1},
		{"Unknown", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.s), func(t *testing.T) {
			t.Parallel()
			if got := tt.s.Score(); got != tt.want {
				t.Errorf("Severity(%q).Score() = %d, want %d", tt.s, got, tt.want)
			}
		})
	}
}

func TestSeveritySortOrder(t *testing.T) {
	t.Parallel()

	input := []Severity{Low, Critical, Medium, Info, High}
	sort.Slice(input, func(i, j int) bool {
		return input[i].Score() > input[j].Score()
	})
	expected := []Severity{Critical, High, Medium, Low, Info}
	for i, s := range input {
		if s != expected[i] {
			t.Errorf("pos %d: got %s, want %s", i, s, expected[i])
		}
	}
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"CRITICAL", Critical, true},
		{" High ", High, true},
		{"medium", Medium, true},
		{"Info", Info, true},
		{"moderate", "moderate", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSeverity(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSeverity(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFromCVSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  Severity
	}{
		{10.0, Critical},
		{9.0, Critical},
		{8.9, High},
		{7.0, High},
		{6.9, Medium},
		{4.0, Medium},
		{3.9, Low},
		{0.1, Low},
		{0, Info},
	}
	for _, tt := range tests {
		if got := FromCVSS(tt.score); got != tt.want {
			t.Errorf("FromCVSS(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestMaxSeverity(t *testing.T) {
	t.Parallel()

	if got := MaxSeverity(Low, High, Medium); got != High {
		t.Errorf("got %s, want high", got)
	}
	if got := MaxSeverity(); got != Info {
		t.Errorf("empty: got %s, want info", got)
	}
}

func TestSeverityString(t *testing.T) {
	t.Parallel()

	if s := Critical.String(); s != "critical" {
		t.Errorf("got %q, want %q", s, "critical")
	}
	if s := Info.String(); s != "info" {
		t.Errorf("got %q, want %q", s, "info")
	}
}

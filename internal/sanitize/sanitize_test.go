package sanitize

import (
	"strings"
	"testing"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "claims",
			expected: "claims",
		},
		{
			name:     "uppercase converted",
			input:    "Claims",
			expected: "claims",
		},
		{
			name:     "spaces replaced",
			input:    "my claims",
			expected: "my_claims",
		},
		{
			name:     "hyphens replaced",
			input:    "claims-2026",
			expected: "claims_2026",
		},
		{
			name:     "special characters replaced",
			input:    "claims!@#index",
			expected: "claims_index",
		},
		{
			name:     "multiple underscores collapsed",
			input:    "claims___index",
			expected: "claims_index",
		},
		{
			name:     "leading and trailing underscores trimmed",
			input:    "_claims_",
			expected: "claims",
		},
		{
			name:     "empty input",
			input:    "",
			expected: DefaultIdentifier,
		},
		{
			name:     "only invalid characters",
			input:    "!!!",
			expected: DefaultIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Identifier(tt.input)
			if got != tt.expected {
				t.Errorf("Identifier(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIdentifierTruncation(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := Identifier(long)

	if len(got) > MaxIdentifierLength {
		t.Errorf("Identifier produced %d chars, max is %d", len(got), MaxIdentifierLength)
	}
	if !strings.Contains(got, "_") {
		t.Error("truncated identifier missing hash suffix")
	}

	// Distinct long inputs must stay distinct after truncation.
	other := Identifier(strings.Repeat("a", 99) + "b")
	if got == other {
		t.Error("truncation collapsed distinct identifiers")
	}
}

func TestIdentifierValidOutput(t *testing.T) {
	inputs := []string{"Weird Input!", "a--b", "UPPER_case", strings.Repeat("x y", 50)}
	for _, in := range inputs {
		got := Identifier(in)
		for _, r := range got {
			valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
			if !valid {
				t.Errorf("Identifier(%q) produced invalid rune %q in %q", in, r, got)
			}
		}
	}
}

package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Main Conference Room  ",
			want:  "Main Conference Room",
		},
		{
			name:  "multiple spaces between words",
			input: "Main    Conference    Room",
			want:  "Main Conference Room",
		},
		{
			name:  "tabs and newlines",
			input: "Main\t\nConference Room",
			want:  "Main Conference Room",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve special characters",
			input: " Café & Spa™ ",
			want:  "Café & Spa™",
		},
		{
			name:  "non-latin characters",
			input: " אולם הרצאות ",
			want:  "אולם הרצאות",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTrimAndNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"  Main   Hall  ",
		"Tennis Court 2",
		"",
		"\t\tstudy\nroom\t",
	}

	for _, input := range inputs {
		once := TrimAndNormalize(input)
		twice := TrimAndNormalize(once)
		if once != twice {
			t.Errorf("TrimAndNormalize not idempotent for %q: first=%q second=%q", input, once, twice)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and trim",
			input: "  Alice@Example.COM ",
			want:  "alice@example.com",
		},
		{
			name:  "already normalized",
			input: "bob@example.com",
			want:  "bob@example.com",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeEmail(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and trim",
			input: " Alice_W ",
			want:  "alice_w",
		},
		{
			name:  "inner whitespace collapsed",
			input: "alice   w",
			want:  "alice w",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeUsername(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeUsername(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

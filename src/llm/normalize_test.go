package llm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		original string
		want     string
		ok       bool
	}{
		{"code fence", "```\nHello world\n```", "original", "Hello world", true},
		{"language tagged fence", "```text\nHello world\n```", "original", "Hello world", true},
		{"double quotes", "\"Hello world\"", "original", "Hello world", true},
		{"single quotes", "'Hello world'", "original", "Hello world", true},
		{"assistant prefix", "Here's your rewrite: Hello world", "original", "Hello world", true},
		{"empty", "", "original", "", false},
		{"blank", "   ", "original", "", false},
		{"identical", "hello", "hello", "", false},
		{"identical after trim", "  hello  ", "hello", "", false},
		{"passthrough", "This is a perfectly normal rewrite.", "original text", "This is a perfectly normal rewrite.", true},
		{"combined", "```\n\"Here's your rewrite: Hello world\"\n```", "original", "Hello world", true},
		{"lone quote", "\"", "original", "\"", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw, tt.original)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Normalize(%q, %q) = (%q, %v); want (%q, %v)", tt.raw, tt.original, got, ok, tt.want, tt.ok)
			}
		})
	}
}

package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: " yes ", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out := &bytes.Buffer{}
			got, err := Confirm(strings.NewReader(tt.input), out, "Delete 3 revisions?")
			if err != nil {
				t.Fatalf("Confirm() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if out.String() != "Delete 3 revisions? [y/N]: " {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

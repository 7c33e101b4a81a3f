// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import "testing"

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		// Bare identifiers.
		{"new style", "2301.07041", "2301.07041", false},
		{"four digit suffix", "0704.0001", "0704.0001", false},
		{"with version", "2301.07041v2", "2301.07041v2", false},
		{"old style", "hep-th/9901001", "hep-th/9901001", false},
		{"old style with subject class", "math.GT/0309136v1", "math.GT/0309136v1", false},

		// Prefixes and URLs.
		{"arXiv prefix", "arXiv:2301.07041", "2301.07041", false},
		{"lowercase prefix", "arxiv:2301.07041", "2301.07041", false},
		{"abs URL", "https://arxiv.org/abs/2301.07041", "2301.07041", false},
		{"pdf URL", "https://arxiv.org/pdf/2301.07041v3.pdf", "2301.07041v3", false},
		{"e-print URL", "http://export.arxiv.org/e-print/2301.07041", "2301.07041", false},
		{"old style abs URL", "https://arxiv.org/abs/hep-th/9901001", "hep-th/9901001", false},

		// Whitespace handling.
		{"surrounding whitespace", "  2301.07041  ", "2301.07041", false},

		// Rejections.
		{"empty", "", "", true},
		{"DOI", "10.1145/1234567.1234568", "", true},
		{"other host", "https://example.com/abs/2301.07041", "", true},
		{"too few digits", "2301.123", "", true},
		{"garbage", "hello-world", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeID(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeID(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

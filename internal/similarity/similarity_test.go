package similarity

import (
	"math"
	"testing"
)

func TestScore_ExactMatch(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{"identical", "Mjölk", "Mjölk"},
		{"case insensitive", "Mjölk 1L", "MJÖLK 1l"},
		{"whitespace trimmed", "  Ägg 12-pack  ", "Ägg 12-pack"},
		{"both empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.a, tt.b); got != 1.0 {
				t.Errorf("Score(%q, %q) = %v, want 1.0", tt.a, tt.b, got)
			}
		})
	}
}

func TestScore_Substring(t *testing.T) {
	if got := Score("Coca Cola", "Coca Cola Zero"); got != 0.8 {
		t.Errorf("Score = %v, want 0.8", got)
	}
	// Symmetric via the or-check
	if got := Score("Coca Cola Zero", "Coca Cola"); got != 0.8 {
		t.Errorf("Score reversed = %v, want 0.8", got)
	}
}

func TestScore_TokenOverlap(t *testing.T) {
	// "Filmjölk 3%" vs "Filmjölk 3 procent": substring does not apply,
	// "filmjölk" and "3" (punctuation-trimmed) shared out of max(2, 3).
	got := Score("Filmjölk 3%", "Filmjölk 3 procent")
	want := 2.0 / 3.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScore_Levenshtein(t *testing.T) {
	// No shared tokens, single-word names: falls through to edit distance.
	// "mjölk" vs "mjölq": 1 substitution over 5 runes.
	got := Score("Mjölk", "Mjölq")
	want := 1.0 - 1.0/5.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScore_Commutative(t *testing.T) {
	pairs := [][2]string{
		{"Mjölk", "Mjölk 1L"},
		{"Filmjölk 3%", "Filmjölk 3 procent"},
		{"Äpple", "Äpplen"},
		{"Bananer", "Tomater"},
		{"", "Ost"},
		// Repeated tokens on one side must not inflate the overlap count
		// in one direction only.
		{"mjölk mjölk", "mjölk te extra"},
	}

	for _, p := range pairs {
		ab := Score(p[0], p[1])
		ba := Score(p[1], p[0])
		if ab != ba {
			t.Errorf("Score(%q, %q) = %v but Score(%q, %q) = %v",
				p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestScore_Range(t *testing.T) {
	pairs := [][2]string{
		{"a", "completely different string"},
		{"Kaffe", "Te"},
		{"", "x"},
	}

	for _, p := range pairs {
		got := Score(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Score(%q, %q) = %v out of [0,1]", p[0], p[1], got)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"mjölk", "mjölk", 0},
		{"mjölk", "mjolk", 1},
	}

	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

package textutil_test

import (
	"strings"
	"testing"

	"scenesmith/internal/textutil"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"simple", "Intro to Fourier", 0, "intro_to_fourier"},
		{"punctuation", "  What's a Wave?! ", 0, "what_s_a_wave"},
		{"diacritics", "Café Über Résumé", 0, "cafe_uber_resume"},
		{"digits", "Step 2: Sum", 0, "step_2_sum"},
		{"truncate", "abcdefghij klmnop", 11, "abcdefghij"},
		{"empty", "???", 0, ""},
		{"non latin", "傅里叶", 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.Slugify(tc.input, tc.max); got != tc.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestHumanize(t *testing.T) {
	if got := textutil.Humanize("precache_voiceovers"); got != "Precache Voiceovers" {
		t.Fatalf("Humanize = %q", got)
	}
	if got := textutil.Humanize(""); got != "" {
		t.Fatalf("Humanize(empty) = %q", got)
	}
}

func TestSummarize(t *testing.T) {
	if got := textutil.Summarize("  \n ", 10); got != "<empty>" {
		t.Fatalf("Summarize(blank) = %q", got)
	}
	got := textutil.Summarize("line one\n\tline two "+strings.Repeat("x", 50), 20)
	if !strings.HasSuffix(got, "...") || strings.Contains(got, "\n") {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestSanitizeTokenAndClassName(t *testing.T) {
	if got := textutil.SanitizeToken("Build Scenes/QC"); got != "build_scenes_qc" {
		t.Fatalf("SanitizeToken = %q", got)
	}
	if got := textutil.SanitizeToken("  "); got != "unknown" {
		t.Fatalf("SanitizeToken(blank) = %q", got)
	}
	tests := map[string]string{
		"scene_01_intro": "Scene01Intro",
		"fourier series": "FourierSeries",
		"01_x":           "Scene01X",
		"__":             "Scene",
	}
	for in, want := range tests {
		if got := textutil.ClassName(in); got != want {
			t.Fatalf("ClassName(%q) = %q, want %q", in, got, want)
		}
	}
}

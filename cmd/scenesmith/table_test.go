package main

import (
	"strings"
	"testing"
)

func TestRenderTableKeepsFooterCase(t *testing.T) {
	out := renderTable(tableSpec{
		Headers: []string{"Phase", "Outcome"},
		Rows:    [][]string{{"plan", "ok"}, {"training", "retryable"}},
		Aligns:  []columnAlignment{alignLeft, alignRight},
		Footer:  "2 attempts, 1 failed",
	})
	if !strings.Contains(out, "2 attempts, 1 failed") {
		t.Fatalf("footer case changed:\n%s", out)
	}
	if strings.Contains(out, "ATTEMPTS") {
		t.Fatalf("footer was uppercased:\n%s", out)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(tableSpec{Headers: []string{"A", "B", "C"}, Rows: [][]string{{"only"}}})
	if !strings.Contains(out, "only") {
		t.Fatalf("missing row:\n%s", out)
	}
	if renderTable(tableSpec{}) != "" {
		t.Fatalf("expected empty output without headers")
	}
}

package main

import (
	"testing"

	"showrunner/internal/api"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"ready_for_review":  "Ready For Review",
		"script_generation": "Script Generation",
		"pending":           "Pending",
		"":                  "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID(""); got != "-" {
		t.Fatalf("shortID of empty = %q, want -", got)
	}
	if got := shortID("abcd"); got != "abcd" {
		t.Fatalf("shortID of short value = %q, want abcd", got)
	}
	if got := shortID("0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9"); got != "0a1b2c3d" {
		t.Fatalf("shortID of uuid = %q, want 0a1b2c3d", got)
	}
}

func TestFormatDisplayTime(t *testing.T) {
	if got := formatDisplayTime("2026-03-01T09:30:00Z"); got != "2026-03-01 09:30" {
		t.Fatalf("formatDisplayTime = %q", got)
	}
	if got := formatDisplayTime(""); got != "" {
		t.Fatalf("expected empty display for empty input, got %q", got)
	}
	if got := formatDisplayTime("garbled"); got != "garbled" {
		t.Fatalf("expected passthrough for unparseable input, got %q", got)
	}
}

func TestBuildJobRowsNewestFirst(t *testing.T) {
	jobs := []api.JobView{
		{ID: 1, Kind: "render", Status: "pending", Attempt: 0, MaxAttempts: 3, CreatedAt: "2026-03-01T08:00:00Z"},
		{ID: 2, Kind: "publish", Status: "failed", Attempt: 3, MaxAttempts: 3, CreatedAt: "2026-03-01T09:00:00Z"},
	}
	rows := buildJobRows(jobs)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "2" {
		t.Fatalf("expected newest job first, got id %s", rows[0][0])
	}
	if rows[0][3] != "Failed" {
		t.Fatalf("expected status label Failed, got %q", rows[0][3])
	}
	if rows[0][4] != "3/3" {
		t.Fatalf("expected attempts 3/3, got %q", rows[0][4])
	}
}

func TestBuildQueueStatusRowsSorted(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"running": 2, "failed": 1, "pending": 4})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Failed" || rows[1][0] != "Pending" || rows[2][0] != "Running" {
		t.Fatalf("expected alphabetical status order, got %v", rows)
	}
}

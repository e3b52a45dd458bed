package main

import (
	"testing"
	"time"
)

func TestParseWhen(t *testing.T) {
	ts, err := parseWhen("1700000000")
	if err != nil {
		t.Fatalf("parseWhen(unix) error: %v", err)
	}
	if ts != 1700000000 {
		t.Errorf("parseWhen(unix) = %d, want 1700000000", ts)
	}

	ts, err = parseWhen("2026-03-20T19:00:00-03:00")
	if err != nil {
		t.Fatalf("parseWhen(rfc3339) error: %v", err)
	}
	want := time.Date(2026, 3, 20, 19, 0, 0, 0, time.FixedZone("", -3*3600)).Unix()
	if ts != want {
		t.Errorf("parseWhen(rfc3339) = %d, want %d", ts, want)
	}

	if _, err := parseWhen("tomorrow at noon"); err == nil {
		t.Error("parseWhen should reject free-form input")
	}
}

package timecheck

import (
	"testing"
	"time"
)

func TestParseISO8601WithOffset(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2025-01-01T20:00:00+08:00", true},
		{"2025-01-01T20:00:00-05:30", true},
		{"2025-01-01T20:00:00+00:00", true},
		{"2025-01-01T20:00:00Z", false},
		{"2025-01-01T20:00:00", false},
		{"2025-01-01 20:00:00+08:00", false},
		{"2025-02-30T20:00:00+08:00", false},
		{"2025-01-01T25:00:00+08:00", false},
		{"", false},
		{"tomorrow", false},
	}

	for _, tt := range tests {
		_, err := ParseISO8601WithOffset(tt.in)
		if got := err == nil; got != tt.want {
			t.Errorf("ParseISO8601WithOffset(%q) error = %v, want ok=%v", tt.in, err, tt.want)
		}
	}

	got, err := ParseISO8601WithOffset("2025-01-01T20:00:00+08:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parsed = %v, want %v", got, want)
	}
}

func TestFormatOffsetRoundTrips(t *testing.T) {
	for _, loc := range []*time.Location{time.UTC, time.FixedZone("CST", 8*3600), time.FixedZone("NST", -(3*3600 + 1800))} {
		in := time.Date(2025, 1, 15, 10, 30, 0, 0, loc)
		s := FormatOffset(in)
		got, err := ParseISO8601WithOffset(s)
		if err != nil {
			t.Errorf("FormatOffset(%v) = %q is not accepted: %v", in, s, err)
			continue
		}
		if !got.Equal(in) {
			t.Errorf("round trip %q = %v, want %v", s, got, in)
		}
	}
	if s := FormatOffset(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)); s != "2025-01-15T10:00:00+00:00" {
		t.Errorf("UTC renders as %q, want +00:00", s)
	}
}

func TestIsValidTimezone(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Asia/Shanghai", true},
		{"America/New_York", true},
		{"America/Argentina/Buenos_Aires", true},
		{"Etc/GMT+8", true},
		{"UTC", true},
		{"Invalid/Timezone", false},
		{"Asia/Atlantis", false},
		{"Asia/Beijing", false},
		{"Shanghai", false},
		{"EST", false},
		{"", false},
		{"../etc/passwd", false},
	}

	for _, tt := range tests {
		if got := IsValidTimezone(tt.in); got != tt.want {
			t.Errorf("IsValidTimezone(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHasExplicitOffset(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2025-01-02T15:00:00+08:00", true},
		{"2025-01-02T15:00:00-0500", true},
		{"2025-01-02T15:00:00.250+08:00", true},
		{"2025-01-02T15:00+08:00", true},
		{"2025-01-02T15:00:00Z", false},
		{"2025-01-02T15:00:00", false},
		{"2025-01-02", false},
	}

	for _, tt := range tests {
		if got := HasExplicitOffset(tt.in); got != tt.want {
			t.Errorf("HasExplicitOffset(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseInstant(t *testing.T) {
	shanghai, err := LoadTimezone("Asia/Shanghai")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	got, err := ParseInstant("2025-01-02T15:00:00", shanghai)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2025, 1, 2, 7, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("zone-less parse = %v, want %v", got, want)
	}

	got, err = ParseInstant("2025-01-02T15:00:00Z", shanghai)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("UTC parse = %v, want %v", got, want)
	}

	if _, err := ParseInstant("next tuesday", shanghai); err == nil {
		t.Error("expected error for free text")
	}
}

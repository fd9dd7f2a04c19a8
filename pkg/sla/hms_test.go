package sla

import (
	"strings"
	"testing"
	"time"
)

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{20 * time.Minute, "00:20:00"},
		{3*time.Hour + 4*time.Minute + 5*time.Second, "03:04:05"},
		{27*time.Hour + 5*time.Minute + 3*time.Second, "27:05:03"},
		{130 * time.Hour, "130:00:00"},
		{1500 * time.Millisecond, "00:00:01"},
		{-90 * time.Second, "-00:01:30"},
	}

	for _, tt := range tests {
		if got := FormatHMS(tt.d); got != tt.want {
			t.Errorf("FormatHMS(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestParseHMS(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"04:00:00", 4 * time.Hour, false},
		{"4:00:00", 4 * time.Hour, false},
		{"100:30:15", 100*time.Hour + 30*time.Minute + 15*time.Second, false},
		{"00:60:00", 0, true},
		{"01:00", 0, true},
		{"aa:00:00", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseHMS(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHMS(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHMS(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseHMS_ErrorQuotesInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"-1:xx:00", `"-1:xx:00"`},
		{"-01:00", `"-01:00"`},
		{" 1:99:00 ", `"1:99:00"`},
	}

	for _, tt := range tests {
		_, err := ParseHMS(tt.in)
		if err == nil {
			t.Errorf("ParseHMS(%q) should fail", tt.in)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("ParseHMS(%q) error = %v, want it to quote %s", tt.in, err, tt.want)
		}
	}

	if d, err := ParseHMS("-01:00:00"); err != nil || d != -time.Hour {
		t.Errorf("ParseHMS(-01:00:00) = %v, %v", d, err)
	}
}

func TestHMS_RoundTrip(t *testing.T) {
	durations := []time.Duration{
		0,
		time.Second,
		59*time.Minute + 59*time.Second,
		24 * time.Hour,
		49*time.Hour + 1*time.Second,
		1000*time.Hour + 1*time.Minute,
	}

	for _, d := range durations {
		s := FormatHMS(d)
		parsed, err := ParseHMS(s)
		if err != nil {
			t.Fatalf("ParseHMS(%q) error = %v", s, err)
		}
		if again := FormatHMS(parsed); again != s {
			t.Errorf("round trip %v: %q -> %q", d, s, again)
		}
	}
}

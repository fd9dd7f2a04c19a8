package parser

import (
	"strings"
	"testing"
	"time"
)

func at(day, hour, min, sec int) time.Time {
	return time.Date(2024, 3, day, hour, min, sec, 0, time.UTC)
}

func TestParser_Parse(t *testing.T) {
	p := New(time.UTC)

	tests := []struct {
		name  string
		raw   string
		want  []Entry
		drops int
	}{
		{
			name: "two entries with multi-line message",
			raw: "01-03-2024 09:00:00, Juan Pérez, Ticket abierto\n" +
				"01-03-2024 10:00:00 , JPEREZ ,  Revisando\nsegunda línea",
			want: []Entry{
				{Time: at(1, 9, 0, 0), Actor: "juan perez", Message: "Ticket abierto"},
				{Time: at(1, 10, 0, 0), Actor: "jperez", Message: "Revisando\nsegunda línea"},
			},
		},
		{
			name: "pilcrow as line break",
			raw:  "01-03-2024 09:00:00, ana, uno¶01-03-2024 09:30:00, bob, dos",
			want: []Entry{
				{Time: at(1, 9, 0, 0), Actor: "ana", Message: "uno"},
				{Time: at(1, 9, 30, 0), Actor: "bob", Message: "dos"},
			},
		},
		{
			name: "out of order input is sorted",
			raw:  "02-03-2024 09:00:00, bob, later\n01-03-2024 09:00:00, ana, earlier",
			want: []Entry{
				{Time: at(1, 9, 0, 0), Actor: "ana", Message: "earlier"},
				{Time: at(2, 9, 0, 0), Actor: "bob", Message: "later"},
			},
		},
		{
			name: "commas inside message",
			raw:  "01-03-2024 09:00:00, ana, hola, mundo, adios",
			want: []Entry{
				{Time: at(1, 9, 0, 0), Actor: "ana", Message: "hola, mundo, adios"},
			},
		},
		{
			name: "empty message",
			raw:  "01-03-2024 09:00:00, ana,\n01-03-2024 09:30:00, bob, ok",
			want: []Entry{
				{Time: at(1, 9, 0, 0), Actor: "ana", Message: ""},
				{Time: at(1, 9, 30, 0), Actor: "bob", Message: "ok"},
			},
		},
		{
			name: "date inside a line is not a boundary",
			raw:  "01-03-2024 09:00:00, ana, visto el 02-03-2024 por cliente",
			want: []Entry{
				{Time: at(1, 9, 0, 0), Actor: "ana", Message: "visto el 02-03-2024 por cliente"},
			},
		},
		{
			name: "slashes and single digit hour",
			raw:  "05/03/2024 9:05:00, ana, x",
			want: []Entry{
				{Time: at(5, 9, 5, 0), Actor: "ana", Message: "x"},
			},
		},
		{
			name: "invalid timestamp dropped",
			raw: "01-03-2024 09:00:00, ana, ok\n" +
				"32-13-2024 99:99:99, bob, broken\n" +
				"01-03-2024 11:00:00, carl, fine",
			want: []Entry{
				{Time: at(1, 9, 0, 0), Actor: "ana", Message: "ok"},
				{Time: at(1, 11, 0, 0), Actor: "carl", Message: "fine"},
			},
			drops: 1,
		},
		{
			name: "text without headers",
			raw:  "no structured content here",
			want: nil,
		},
		{
			name: "empty",
			raw:  "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := p.Parse(tt.raw, "INC-1")
			if len(diags) != tt.drops {
				t.Errorf("Parse() diagnostics = %d, want %d (%v)", len(diags), tt.drops, diags)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Parse() returned %d entries, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if !got[i].Time.Equal(tt.want[i].Time) {
					t.Errorf("entry %d Time = %v, want %v", i, got[i].Time, tt.want[i].Time)
				}
				if got[i].Actor != tt.want[i].Actor {
					t.Errorf("entry %d Actor = %q, want %q", i, got[i].Actor, tt.want[i].Actor)
				}
				if got[i].Message != tt.want[i].Message {
					t.Errorf("entry %d Message = %q, want %q", i, got[i].Message, tt.want[i].Message)
				}
			}
		})
	}
}

func TestParser_Parse_DiagnosticNamesIncident(t *testing.T) {
	p := New(nil)

	_, diags := p.Parse("32-13-2024 99:99:99, bob, broken", "INC000123")
	if len(diags) != 1 {
		t.Fatalf("Parse() diagnostics = %d, want 1", len(diags))
	}

	d := diags[0]
	if d.Incident != "INC000123" {
		t.Errorf("Diagnostic.Incident = %q, want INC000123", d.Incident)
	}
	if d.Token != "32-13-2024 99:99:99" {
		t.Errorf("Diagnostic.Token = %q", d.Token)
	}
	if d.Err == nil {
		t.Error("Diagnostic.Err should not be nil")
	}
	if !strings.Contains(d.String(), "INC000123") {
		t.Errorf("Diagnostic.String() = %q, want incident label", d.String())
	}
}

func TestParser_Parse_Ordered(t *testing.T) {
	p := New(time.UTC)
	raw := strings.Join([]string{
		"03-03-2024 12:00:00, c, third",
		"01-03-2024 08:00:00, a, first",
		"01-03-2024 08:00:00, b, first-tie",
		"02-03-2024 07:00:00, d, second",
	}, "\n")

	entries, _ := p.Parse(raw, "INC-ORDER")
	for i := 1; i < len(entries); i++ {
		if entries[i].Time.Before(entries[i-1].Time) {
			t.Fatalf("entries not sorted at %d: %v before %v", i, entries[i].Time, entries[i-1].Time)
		}
	}

	if entries[0].Actor != "a" || entries[1].Actor != "b" {
		t.Errorf("equal timestamps should keep textual order, got %q then %q", entries[0].Actor, entries[1].Actor)
	}
}

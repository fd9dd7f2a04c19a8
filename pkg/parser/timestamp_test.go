package parser

import (
	"testing"
	"time"
)

func TestTimestampParser_Parse(t *testing.T) {
	p := NewTimestampParser(time.UTC)

	tests := []struct {
		name    string
		token   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "dashes",
			token: "15-01-2024 10:30:00",
			want:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "slashes",
			token: "15/01/2024 10:30:05",
			want:  time.Date(2024, 1, 15, 10, 30, 5, 0, time.UTC),
		},
		{
			name:  "mixed separators",
			token: "15/01-2024 10:30:05",
			want:  time.Date(2024, 1, 15, 10, 30, 5, 0, time.UTC),
		},
		{
			name:  "single digit hour",
			token: "02-02-2024 9:05:00",
			want:  time.Date(2024, 2, 2, 9, 5, 0, 0, time.UTC),
		},
		{
			name:    "day and month out of range",
			token:   "32-13-2024 10:00:00",
			wantErr: true,
		},
		{
			name:    "time out of range",
			token:   "01-01-2024 99:99:99",
			wantErr: true,
		},
		{
			name:    "february 30",
			token:   "30-02-2024 10:00:00",
			wantErr: true,
		},
		{
			name:    "empty",
			token:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimestampParser_Location(t *testing.T) {
	loc := time.FixedZone("CLT", -3*3600)
	p := NewTimestampParser(loc)

	got, err := p.Parse("01-06-2024 08:00:00")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Parse() = %v, want %v", got.UTC(), want)
	}

	if NewTimestampParser(nil).Location() != time.UTC {
		t.Error("NewTimestampParser(nil) should default to UTC")
	}
}

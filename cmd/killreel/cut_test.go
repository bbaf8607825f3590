package main

import (
	"slices"
	"testing"
	"time"
)

func TestParseOffsets(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []time.Duration
		wantErr bool
	}{
		{"go durations", []string{"30s", "2m", "1m30s"}, []time.Duration{30 * time.Second, 2 * time.Minute, 90 * time.Second}, false},
		{"timestamps", []string{"1:30", "00:04:10.5"}, []time.Duration{90 * time.Second, 250*time.Second + 500*time.Millisecond}, false},
		{"bare seconds", []string{"120", " 45 "}, []time.Duration{2 * time.Minute, 45 * time.Second}, false},
		{"blank entries skipped", []string{"", "10s"}, []time.Duration{10 * time.Second}, false},
		{"garbage", []string{"soon"}, nil, true},
		{"nothing", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOffsets(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

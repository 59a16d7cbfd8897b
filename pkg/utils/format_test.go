package utils

import (
	"testing"
	"time"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{name: "bytes", bytes: 500, expected: "500 B"},
		{name: "kilobytes", bytes: 1500, expected: "1.5 KB"},
		{name: "megabytes", bytes: 1500000, expected: "1.4 MB"},
		{name: "gigabytes", bytes: 1500000000, expected: "1.4 GB"},
		{name: "terabytes", bytes: 1500000000000, expected: "1.4 TB"},
		{name: "zero bytes", bytes: 0, expected: "0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatSize(tt.bytes)
			if result != tt.expected {
				t.Errorf("FormatSize(%d) = %s; want %s", tt.bytes, result, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		in       time.Duration
		expected string
	}{
		{name: "zero", in: 0, expected: "0s"},
		{name: "seconds", in: 42 * time.Second, expected: "42s"},
		{name: "rounds", in: 1499 * time.Millisecond, expected: "1s"},
		{name: "minutes", in: 2*time.Minute + 3*time.Second, expected: "2m3s"},
		{name: "hours", in: time.Hour + 2*time.Minute + 3*time.Second, expected: "1h2m3s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.expected {
				t.Errorf("FormatDuration(%s) = %s; want %s", tt.in, got, tt.expected)
			}
		})
	}
}

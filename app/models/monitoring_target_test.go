package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/accessradar/accessradar/internal/pkg/apperrors"
)

func TestNormalizeMonitoringURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/Path/", "https://example.com/path"},
		{"  https://example.com  ", "https://example.com"},
		{"https://example.com///", "https://example.com"},
	}
	for _, tt := range tests {
		got, err := NormalizeMonitoringURL(tt.in)
		if err != nil {
			t.Fatalf("NormalizeMonitoringURL(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("NormalizeMonitoringURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeMonitoringURLRejectsOversized(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", MonitoringURLMaxLen)

	_, err := NormalizeMonitoringURL(long)
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if ve.Field != "url" {
		t.Fatalf("field = %q, want url", ve.Field)
	}
}

func TestNormalizeMonitoringURLBoundary(t *testing.T) {
	exact := "https://example.com/" + strings.Repeat("a", MonitoringURLMaxLen-len("https://example.com/"))

	got, err := NormalizeMonitoringURL(exact)
	if err != nil {
		t.Fatalf("url at the limit must pass: %v", err)
	}
	if len(got) != MonitoringURLMaxLen {
		t.Fatalf("normalized length = %d, want %d", len(got), MonitoringURLMaxLen)
	}
}

func TestNormalizeMonitoringProfile(t *testing.T) {
	if got := NormalizeMonitoringProfile("eaa"); got != MonitoringProfileEAA {
		t.Fatalf("profile = %q, want eaa", got)
	}
	for _, in := range []string{"wad", "", "bogus"} {
		if got := NormalizeMonitoringProfile(in); got != MonitoringProfileWAD {
			t.Fatalf("NormalizeMonitoringProfile(%q) = %q, want wad", in, got)
		}
	}
}

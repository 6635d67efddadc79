package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("disk went away")
	err := Wrap(ErrTransient, "extract", "read file", "source unreadable", base)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected error to match ErrTransient: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to survive: %v", err)
	}
	if !strings.Contains(err.Error(), "extract: read file: source unreadable") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "enrich", "post", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", Wrap(ErrTransient, "a", "b", "", nil), true},
		{"external tool", Wrap(ErrExternalTool, "a", "b", "", nil), true},
		{"timeout", Wrap(ErrTimeout, "a", "b", "", nil), true},
		{"validation", Wrap(ErrValidation, "a", "b", "", nil), false},
		{"configuration", Wrap(ErrConfiguration, "a", "b", "", nil), false},
		{"not found", Wrap(ErrNotFound, "a", "b", "", nil), false},
		{"plain", errors.New("anything"), true},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Errorf("%s: Retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

package dberr

import (
	"errors"
	"testing"
)

func TestCorruptPageErrorUnwrapsToSentinel(t *testing.T) {
	err := &CorruptPageError{Page: 42, Reason: "cell pointer past free space"}
	if !errors.Is(err, ErrCorruptPage) {
		t.Fatalf("expected errors.Is to match ErrCorruptPage")
	}
	if got := err.Error(); got != "corrupt page 42: cell pointer past free space" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestUnsupportedFeatureErrorWrapsUnderlying(t *testing.T) {
	inner := errors.New("NOCASE collation")
	err := &UnsupportedFeatureError{Feature: "index collation", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("expected errors.Is to find wrapped inner error")
	}
}

func TestOutOfRangeError(t *testing.T) {
	err := &OutOfRangeError{What: "column", Value: 7, Bound: 3}
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected errors.Is to match ErrOutOfRange")
	}
}

func TestInvalidStateError(t *testing.T) {
	err := &InvalidStateError{Operation: "read column 0", State: "cursor not positioned on a row"}
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected errors.Is to match ErrInvalidState")
	}
}

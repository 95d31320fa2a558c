package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestEvalError_Format(t *testing.T) {
	err := New(GoldMissing, "no annotation for instance x")
	want := "[GOLD_MISSING] no annotation for instance x"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	cause := stderrors.New("boom")
	wrapped := Wrap(CheckoutFailed, "clone failed", cause)
	if wrapped.Unwrap() != cause {
		t.Error("Unwrap did not return cause")
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("errors.Is should see through EvalError")
	}
}

func TestCodeOf(t *testing.T) {
	inner := New(FileUnparseable, "bad syntax")
	outer := fmt.Errorf("extracting symbols: %w", inner)

	if code := CodeOf(outer); code != FileUnparseable {
		t.Errorf("CodeOf = %s, want %s", code, FileUnparseable)
	}
	if code := CodeOf(stderrors.New("plain")); code != InternalError {
		t.Errorf("CodeOf(plain) = %s, want %s", code, InternalError)
	}
	if !Is(outer, FileUnparseable) {
		t.Error("Is(outer, FileUnparseable) = false, want true")
	}
	if Is(outer, CheckoutFailed) {
		t.Error("Is(outer, CheckoutFailed) = true, want false")
	}
}

package kerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeErr(t *testing.T) {
	if err := OK.Err(); err != nil {
		t.Fatalf("OK.Err() = %v, want nil", err)
	}
	if err := Timeout.Err(); !errors.Is(err, Timeout) {
		t.Fatalf("Timeout.Err() = %v, want Timeout", err)
	}
}

func TestOf(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{Busy, Busy},
		{fmt.Errorf("pool: %w", Exists), Exists},
		{errors.New("plain"), Error},
	}
	for _, tt := range tests {
		if got := Of(tt.err); got != tt.want {
			t.Fatalf("Of(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCodeString(t *testing.T) {
	if got := Deadlock.String(); got != "deadlock" {
		t.Fatalf("Deadlock.String() = %q, want %q", got, "deadlock")
	}
	if got := Code(200).String(); got != "unknown" {
		t.Fatalf("Code(200).String() = %q, want %q", got, "unknown")
	}
}

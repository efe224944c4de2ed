package recovery

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRecoverToError(t *testing.T) {
	err := RecoverToError(discard, "Scan", func() error {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Errorf("Expected Internal, got %v", err)
	}

	want := errors.New("plain")
	if err := RecoverToError(discard, "Scan", func() error { return want }); err != want {
		t.Errorf("Expected error to pass through, got %v", err)
	}
}

func TestRecoverToValue(t *testing.T) {
	v, err := RecoverToValue(discard, "Scan", func() (int, error) {
		var m map[string]int
		m["x"] = 1
		return 1, nil
	})
	if !errors.Is(err, ErrPanic) {
		t.Errorf("Expected ErrPanic, got %v", err)
	}
	if v != 0 {
		t.Errorf("Expected zero value, got %d", v)
	}

	v, err = RecoverToValue(discard, "Scan", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("RecoverToValue() = %d, %v", v, err)
	}
}

package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindDecode, "decode", "failed to decode image",
				errors.New("unexpected EOF")),
			contains: []string{"[decode:decode]", "failed to decode image", "unexpected EOF"},
		},
		{
			name:     "error without cause",
			err:      New(KindUnsupported, "encode", "unknown target format"),
			contains: []string{"[unsupported_format:encode]", "unknown target format"},
		},
		{
			name:     "formatted message",
			err:      Newf(KindArchive, "open", "entry %s too large", "a.png"),
			contains: []string{"[archive:open]", "entry a.png too large"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindEncode, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrap_KeepsExistingKind(t *testing.T) {
	inner := New(KindDecode, "sniff", "unknown signature")
	outer := Wrap(KindEncode, "convert", "conversion failed", fmt.Errorf("entry a.png: %w", inner))

	if outer.Kind != KindDecode {
		t.Errorf("Wrap() kind = %s, expected %s", outer.Kind, KindDecode)
	}
	if Wrap(KindEncode, "noop", "nil", nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindArchive, "test", "message"),
			kind:     KindArchive,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      fmt.Errorf("outer: %w", Wrap(KindDecode, "test", "message", errors.New("cause"))),
			kind:     KindDecode,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindConfig, "test", "message"),
			kind:     KindDomain,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindConfig,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %s", got)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %s", got)
	}
	if got := KindOf(New(KindUnsupported, "op", "msg")); got != KindUnsupported {
		t.Errorf("KindOf(typed) = %s", got)
	}
}

package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := InvalidInput("Test.Op", nil, "test message")

	if err.Code != http.StatusBadRequest {
		t.Errorf("expected code %d, got %d", http.StatusBadRequest, err.Code)
	}
	if err.Error() != "test message" {
		t.Errorf("expected error string 'test message', got '%s'", err.Error())
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("cause error")
	err := Internal("Test.Op", cause, "test message")

	expected := "test message: cause error"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
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
			name:     "not found error",
			err:      NotFound("op", nil, "not found"),
			kind:     KindNotFound,
			expected: true,
		},
		{
			name:     "other error",
			err:      InvalidInput("op", nil, "bad request"),
			kind:     KindNotFound,
			expected: false,
		},
		{
			name:     "non-custom error",
			err:      fmt.Errorf("standard error"),
			kind:     KindNotFound,
			expected: false,
		},
		{
			name:     "transient wrapped by internal",
			err:      Internal("outer", Transient("inner", nil, "429"), "failed"),
			kind:     KindTransientProvider,
			expected: true,
		},
		{
			name:     "transient wrapped by fmt",
			err:      fmt.Errorf("download: %w", Transient("inner", nil, "429")),
			kind:     KindTransientProvider,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.expected {
				t.Errorf("IsKind() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid input", InvalidInput("op", nil, "x"), http.StatusBadRequest},
		{"not found", NotFound("op", nil, "x"), http.StatusNotFound},
		{"downstream", Downstream("op", nil, "x"), http.StatusBadGateway},
		{"configuration", Configuration("op", nil, "x"), http.StatusInternalServerError},
		{"plain", fmt.Errorf("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.expected {
				t.Errorf("expected code %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(Configuration("op", nil, "missing key")); got != KindConfiguration {
		t.Errorf("expected %s, got %s", KindConfiguration, got)
	}
	if got := KindOf(fmt.Errorf("plain")); got != KindInternal {
		t.Errorf("expected %s, got %s", KindInternal, got)
	}
}

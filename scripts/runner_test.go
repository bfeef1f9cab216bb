package scripts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nijaru/yt-digest/logger"
)

func TestExecRunnerSuccess(t *testing.T) {
	runner := NewExecRunner(Config{}, logger.Discard())

	out, err := runner.Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("expected 'hello', got %q", out)
	}
}

func TestExecRunnerFailure(t *testing.T) {
	runner := NewExecRunner(Config{}, logger.Discard())

	_, err := runner.Run(context.Background(), "sh", "-c", "echo 'ERROR: HTTP Error 429: Too Many Requests' >&2; exit 3")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CommandError, got %T", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", cmdErr.ExitCode)
	}
	if !StderrContains(err, "http error 429") {
		t.Errorf("expected stderr match, got %q", cmdErr.Stderr)
	}
	if !strings.Contains(err.Error(), "Too Many Requests") {
		t.Errorf("expected stderr in message, got %q", err.Error())
	}
}

func TestStderrContainsIgnoresOtherErrors(t *testing.T) {
	if StderrContains(errors.New("429"), "429") {
		t.Error("plain errors carry no stderr")
	}
}

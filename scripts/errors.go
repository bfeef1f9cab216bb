package scripts

import (
	"errors"
	"fmt"
	"strings"
)

// CommandError is a failed external command with its captured stderr.
type CommandError struct {
	Op       string
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %s exited with %d", e.Op, e.Command, e.ExitCode)
	if stderr := lastLine(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// StderrContains reports whether err is a CommandError whose stderr
// contains any of the given substrings, case-insensitively.
func StderrContains(err error, substrings ...string) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	stderr := strings.ToLower(cmdErr.Stderr)
	for _, s := range substrings {
		if strings.Contains(stderr, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// IsRateLimited reports whether a tool failed with an HTTP 429.
func IsRateLimited(err error) bool {
	return StderrContains(err, "http error 429", "too many requests")
}

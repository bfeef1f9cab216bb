package scripts

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner executes external tools (yt-dlp, ffmpeg, whisper-cli). It exists
// so services can be tested without the binaries installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type Config struct {
	// Dir is the working directory for every command. Empty means the
	// current directory.
	Dir         string
	Environment []string
}

type ExecRunner struct {
	config Config
	logger *logrus.Logger
}

func NewExecRunner(cfg Config, logger *logrus.Logger) *ExecRunner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ExecRunner{config: cfg, logger: logger}
}

// Run executes name with args and returns stdout. A non-zero exit is
// returned as a *CommandError carrying stderr.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	const op = "ExecRunner.Run"
	logger := r.logger.WithFields(logrus.Fields{
		"command": name,
		"args":    strings.Join(args, " "),
	})
	logger.Debug("Executing command")

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.config.Dir
	cmd.Env = buildEnvironment(r.config.Environment)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}

		logger.WithError(err).WithFields(logrus.Fields{
			"exit_code": exitCode,
			"stderr":    truncate(stderr.String(), 2000),
		}).Error("Command execution failed")

		return stdout.Bytes(), &CommandError{
			Op:       op,
			Command:  name,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	return stdout.Bytes(), nil
}

func buildEnvironment(additionalEnv []string) []string {
	env := os.Environ()
	if len(additionalEnv) > 0 {
		env = append(env, additionalEnv...)
	}
	return env
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

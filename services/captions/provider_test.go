package captions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/logger"
	"github.com/nijaru/yt-digest/scripts"
)

type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

func TestYtDlpProviderInfo(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "yt-dlp", name)
		assert.Contains(t, args, "--dump-single-json")
		return []byte(`{"id":"abc","title":"A talk","subtitles":{"en":[{"ext":"vtt"}]},"automatic_captions":{}}`), nil
	})

	info, err := NewYtDlpProvider(runner, "yt-dlp", logger.Discard()).Info(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "A talk", info.Title)
	assert.Len(t, info.Subtitles["en"], 1)
}

func TestYtDlpProviderDownload(t *testing.T) {
	dir := t.TempDir()
	runner := runnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		assert.Contains(t, args, "--write-auto-subs")
		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "--sub-langs en")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "caption.en.json3"), []byte("{}"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "caption.en.vtt"), []byte("WEBVTT"), 0644))
		return nil, nil
	})

	path, err := NewYtDlpProvider(runner, "yt-dlp", logger.Discard()).
		Download(context.Background(), "u", Selection{Language: "en", Auto: true}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "caption.en.vtt"), path)
}

func TestYtDlpProviderClassifiesRateLimit(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, &scripts.CommandError{Command: name, ExitCode: 1, Stderr: "ERROR: HTTP Error 429: Too Many Requests"}
	})

	_, err := NewYtDlpProvider(runner, "yt-dlp", logger.Discard()).Info(context.Background(), "u")
	assert.True(t, errors.IsTransient(err), "expected transient error, got %v", err)
}

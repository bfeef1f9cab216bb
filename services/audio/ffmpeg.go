package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/scripts"
)

// FFmpeg prepares audio for the speech engine.
type FFmpeg struct {
	runner scripts.Runner
	binary string
}

func NewFFmpeg(runner scripts.Runner, binary string) *FFmpeg {
	return &FFmpeg{runner: runner, binary: binary}
}

// Normalize converts any input to mono 16 kHz 16-bit PCM WAV.
func (f *FFmpeg) Normalize(ctx context.Context, inputPath, outPath string) error {
	const op = "FFmpeg.Normalize"

	if _, err := f.runner.Run(ctx, f.binary, buildNormalizeArgs(inputPath, outPath)...); err != nil {
		return errors.Downstream(op, err, "ffmpeg audio conversion failed")
	}
	if _, err := os.Stat(outPath); err != nil {
		return errors.Downstream(op, err, "ffmpeg completed but output file is missing")
	}
	return nil
}

// Split cuts a WAV file into consecutive windows of the given length and
// returns the chunk paths in playback order.
func (f *FFmpeg) Split(ctx context.Context, wavPath, dir string, window time.Duration) ([]string, error) {
	const op = "FFmpeg.Split"

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Internal(op, err, "failed to create chunk directory")
	}
	if _, err := f.runner.Run(ctx, f.binary, buildSplitArgs(wavPath, dir, window)...); err != nil {
		return nil, errors.Downstream(op, err, "ffmpeg audio split failed")
	}

	chunks, err := filepath.Glob(filepath.Join(dir, "chunk_*.wav"))
	if err != nil {
		return nil, errors.Internal(op, err, "failed to list chunks")
	}
	if len(chunks) == 0 {
		return nil, errors.Downstream(op, nil, "ffmpeg produced no chunks")
	}
	// Zero padded names sort into playback order.
	sort.Strings(chunks)
	return chunks, nil
}

func buildNormalizeArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

func buildSplitArgs(wavPath, dir string, window time.Duration) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", wavPath,
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%g", window.Seconds()),
		"-reset_timestamps", "1",
		"-c", "copy",
		filepath.Join(dir, "chunk_%05d.wav"),
	}
}

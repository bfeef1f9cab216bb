package captions

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/scripts"
)

// Track is one downloadable format of a caption language.
type Track struct {
	URL      string `json:"url"`
	Ext      string `json:"ext"`
	Protocol string `json:"protocol"`
	Name     string `json:"name"`
}

// VideoInfo is the part of the platform metadata caption lookup needs.
type VideoInfo struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Duration          float64            `json:"duration"`
	Subtitles         map[string][]Track `json:"subtitles"`
	AutomaticCaptions map[string][]Track `json:"automatic_captions"`
}

// Provider lists and downloads caption tracks.
type Provider interface {
	Info(ctx context.Context, url string) (*VideoInfo, error)
	// Download writes the selected track into dir and returns its path.
	Download(ctx context.Context, url string, sel Selection, dir string) (string, error)
}

// YtDlpProvider drives the yt-dlp binary.
type YtDlpProvider struct {
	runner scripts.Runner
	binary string
	logger *logrus.Logger
}

func NewYtDlpProvider(runner scripts.Runner, binary string, logger *logrus.Logger) *YtDlpProvider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &YtDlpProvider{runner: runner, binary: binary, logger: logger}
}

func (p *YtDlpProvider) Info(ctx context.Context, url string) (*VideoInfo, error) {
	const op = "YtDlpProvider.Info"

	output, err := p.runner.Run(ctx, p.binary,
		"--dump-single-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		url,
	)
	if err != nil {
		return nil, classify(op, err, "failed to fetch video info")
	}

	var info VideoInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, errors.Internal(op, err, "Failed to parse video info")
	}
	return &info, nil
}

func (p *YtDlpProvider) Download(ctx context.Context, url string, sel Selection, dir string) (string, error) {
	const op = "YtDlpProvider.Download"

	writeFlag := "--write-subs"
	if sel.Auto {
		writeFlag = "--write-auto-subs"
	}

	_, err := p.runner.Run(ctx, p.binary,
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		writeFlag,
		"--sub-langs", sel.Language,
		"--sub-format", "vtt/srt/ttml/best",
		"-o", filepath.Join(dir, "caption.%(ext)s"),
		url,
	)
	if err != nil {
		return "", classify(op, err, "failed to download captions")
	}

	path, err := findCaptionFile(dir)
	if err != nil {
		return "", errors.ResourceNotFound(op, err, "caption file not written")
	}

	p.logger.WithFields(logrus.Fields{
		"url":      url,
		"language": sel.Language,
		"auto":     sel.Auto,
		"path":     path,
	}).Debug("Captions downloaded")
	return path, nil
}

// findCaptionFile picks the downloaded track, preferring vtt. A json
// track is live chat and never usable.
func findCaptionFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "caption.*"))
	if err != nil {
		return "", err
	}
	sort.Strings(matches)

	rank := func(path string) int {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".vtt":
			return 0
		case ".srt":
			return 1
		case ".ttml", ".xml":
			return 2
		case ".json", ".json3", ".srv3":
			return -1
		default:
			return 3
		}
	}

	best, bestRank := "", 99
	for _, m := range matches {
		if r := rank(m); r >= 0 && r < bestRank {
			best, bestRank = m, r
		}
	}
	if best == "" {
		return "", os.ErrNotExist
	}
	return best, nil
}

// classify maps yt-dlp failures onto error kinds. Rate limiting is
// transient, everything else is a downstream failure.
func classify(op string, err error, message string) error {
	if scripts.IsRateLimited(err) {
		return errors.Transient(op, err, message)
	}
	return errors.Downstream(op, err, message)
}

package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/config"
	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
)

// ArtifactStore holds the text artifacts a job produces. Keys are slash
// separated and never contain user supplied titles.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns a NotFound error when key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

func New(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (ArtifactStore, error) {
	const op = "storage.New"

	switch cfg.Backend {
	case "fs", "":
		return NewFSStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg.S3, logger)
	default:
		return nil, errors.Configuration(op, nil, fmt.Sprintf("unknown storage backend %q", cfg.Backend))
	}
}

func JobPrefix(jobID string) string {
	return "jobs/" + jobID + "/"
}

func TranscriptsPrefix(jobID string) string {
	return JobPrefix(jobID) + "transcripts/"
}

func SummariesPrefix(jobID string) string {
	return JobPrefix(jobID) + "summaries/"
}

// TranscriptKey names a transcript artifact by source so a caption
// transcript and an audio transcript can never collide.
func TranscriptKey(jobID, videoID string, source models.TranscriptSource) string {
	suffix := "_transcript.txt"
	if source == models.SourceCaptions {
		suffix = "_cleaned.txt"
	}
	return TranscriptsPrefix(jobID) + videoID + suffix
}

func SummaryKey(jobID, videoID string) string {
	return SummariesPrefix(jobID) + videoID + "_summary.txt"
}

func FinalKey(jobID string) string {
	return JobPrefix(jobID) + "final_extracted_info.txt"
}

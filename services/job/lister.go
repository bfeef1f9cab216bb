package job

import (
	"context"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/services/search"
	"github.com/nijaru/yt-digest/validation"
)

type Searcher interface {
	Search(ctx context.Context, query, language string, mode models.SearchMode) ([]search.Video, error)
}

// Lister resolves a job's URL or topic query into video descriptors.
type Lister struct {
	searcher Searcher
}

// NewLister accepts a nil searcher, in which case topic jobs fail.
func NewLister(searcher Searcher) *Lister {
	return &Lister{searcher: searcher}
}

func (l *Lister) Videos(ctx context.Context, job *models.Job) ([]*models.VideoDescriptor, error) {
	const op = "Lister.Videos"

	if job.Query == "" {
		id := validation.ExtractVideoID(job.VideoURL)
		if id == "" {
			return nil, errors.InvalidInput(op, nil, "URL does not contain a valid video ID")
		}
		return []*models.VideoDescriptor{{
			VideoID:   id,
			Title:     job.VideoTitle,
			URL:       job.VideoURL,
			QueryLang: job.Options.Language,
		}}, nil
	}

	if l.searcher == nil {
		return nil, errors.Configuration(op, nil, "Topic search is not configured")
	}

	results, err := l.searcher.Search(ctx, job.Query, job.Options.Language, job.Options.SearchMode)
	if err != nil {
		return nil, err
	}

	videos := make([]*models.VideoDescriptor, 0, len(results))
	for _, r := range results {
		videos = append(videos, &models.VideoDescriptor{
			VideoID:   r.ID,
			Title:     r.Title,
			URL:       r.URL(),
			QueryLang: r.Language,
		})
	}
	return videos, nil
}

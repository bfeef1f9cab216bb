package search

import (
	"context"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/nijaru/yt-digest/errors"
)

// Hit is one search result before filtering.
type Hit struct {
	VideoID string
	Title   string
}

// Details are the fields a search needs from the videos endpoint.
type Details struct {
	Duration time.Duration
	// DurationKnown is false when the API omitted the duration or sent
	// one that could not be parsed.
	DurationKnown bool
	Views         uint64
}

// API is the slice of the YouTube Data API the searcher uses.
type API interface {
	Search(ctx context.Context, query, language string, limit int) ([]Hit, error)
	Details(ctx context.Context, ids []string) (map[string]Details, error)
}

type YouTubeAPI struct {
	service *youtube.Service
}

func NewYouTubeAPI(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeAPI, error) {
	const op = "search.NewYouTubeAPI"

	if apiKey == "" {
		return nil, errors.Configuration(op, nil, "YOUTUBE_API_KEY is not set")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Configuration(op, err, "Failed to create YouTube client")
	}
	return &YouTubeAPI{service: service}, nil
}

// Search lists videos for query ordered by view count.
func (y *YouTubeAPI) Search(ctx context.Context, query, language string, limit int) ([]Hit, error) {
	const op = "YouTubeAPI.Search"

	call := y.service.Search.List([]string{"id", "snippet"}).
		Q(query).
		Type("video").
		Order("viewCount").
		MaxResults(int64(limit)).
		Context(ctx)
	if language != "" {
		call = call.RelevanceLanguage(language)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, errors.Downstream(op, err, "YouTube search failed")
	}

	hits := make([]Hit, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		hit := Hit{VideoID: item.Id.VideoId}
		if item.Snippet != nil {
			hit.Title = item.Snippet.Title
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Details fetches duration and view counts for ids.
func (y *YouTubeAPI) Details(ctx context.Context, ids []string) (map[string]Details, error) {
	const op = "YouTubeAPI.Details"

	details := make(map[string]Details, len(ids))
	if len(ids) == 0 {
		return details, nil
	}

	resp, err := y.service.Videos.List([]string{"contentDetails", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Downstream(op, err, "YouTube video lookup failed")
	}

	for _, item := range resp.Items {
		var d Details
		if item.ContentDetails != nil {
			if duration, err := ParseISODuration(item.ContentDetails.Duration); err == nil {
				d.Duration = duration
				d.DurationKnown = true
			}
		}
		if item.Statistics != nil {
			d.Views = item.Statistics.ViewCount
		}
		details[item.Id] = d
	}
	return details, nil
}

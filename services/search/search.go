package search

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/config"
	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
)

// Video is a search result that passed filtering.
type Video struct {
	ID       string
	Title    string
	Language string
	Views    uint64
	Duration time.Duration
}

func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// Translator renders a search query in another language.
type Translator interface {
	Translate(ctx context.Context, text, language string) (string, error)
}

type Searcher struct {
	api        API
	translator Translator
	config     config.SearchConfig
	logger     *logrus.Logger
}

// NewSearcher builds a searcher. A nil translator sends the query
// unchanged to every language.
func NewSearcher(api API, translator Translator, cfg config.SearchConfig, logger *logrus.Logger) *Searcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Searcher{api: api, translator: translator, config: cfg, logger: logger}
}

// Search finds videos for a topic. Focused mode searches language only;
// divergent mode searches each configured language in turn and keeps the
// first occurrence of every video. A language whose search fails is
// skipped; the search fails only when every language failed.
func (s *Searcher) Search(ctx context.Context, query, language string, mode models.SearchMode) ([]Video, error) {
	const op = "Searcher.Search"

	if query == "" {
		return nil, errors.InvalidInput(op, nil, "Search query is empty")
	}

	if mode != models.SearchDivergent {
		return s.searchLanguage(ctx, query, language, s.config.FocusedResults)
	}

	seen := make(map[string]bool)
	var (
		merged  []Video
		lastErr error
		failed  int
	)
	for _, lang := range s.config.DivergentLanguages {
		videos, err := s.searchLanguage(ctx, s.queryFor(ctx, query, lang), lang, s.config.DivergentResults)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.WithError(err).WithField("language", lang).Warn("Search failed for language, continuing")
			lastErr = err
			failed++
			continue
		}
		for _, v := range videos {
			if seen[v.ID] {
				continue
			}
			seen[v.ID] = true
			merged = append(merged, v)
		}
	}
	if failed > 0 && failed == len(s.config.DivergentLanguages) {
		return nil, lastErr
	}
	return merged, nil
}

// queryFor translates a non-ASCII query into English for English
// searches. Translation failures fall back to the original query.
func (s *Searcher) queryFor(ctx context.Context, query, language string) string {
	if s.translator == nil || !strings.HasPrefix(strings.ToLower(language), "en") || isASCII(query) {
		return query
	}

	translated, err := s.translator.Translate(ctx, query, language)
	translated = strings.TrimSpace(translated)
	if err != nil || translated == "" {
		s.logger.WithError(err).WithField("query", query).Warn("Query translation failed, using original")
		return query
	}
	s.logger.WithFields(logrus.Fields{
		"query":      query,
		"translated": translated,
	}).Info("Query translated")
	return translated
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// searchLanguage runs one search, drops short videos and sorts the rest by
// view count, most viewed first.
func (s *Searcher) searchLanguage(ctx context.Context, query, language string, limit int) ([]Video, error) {
	log := s.logger.WithFields(logrus.Fields{
		"query":    query,
		"language": language,
	})

	hits, err := s.api.Search(ctx, query, language, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.VideoID
	}
	details, err := s.api.Details(ctx, ids)
	if err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(hits))
	for _, hit := range hits {
		d, ok := details[hit.VideoID]
		if !ok {
			continue
		}
		if !d.DurationKnown {
			log.WithField("video_id", hit.VideoID).Warn("Unknown video duration, keeping video")
		} else if d.Duration < s.config.MinDuration {
			log.WithFields(logrus.Fields{
				"video_id": hit.VideoID,
				"duration": d.Duration,
			}).Debug("Skipping short video")
			continue
		}
		videos = append(videos, Video{
			ID:       hit.VideoID,
			Title:    hit.Title,
			Language: language,
			Views:    d.Views,
			Duration: d.Duration,
		})
	}

	sort.SliceStable(videos, func(i, j int) bool { return videos[i].Views > videos[j].Views })

	log.WithFields(logrus.Fields{
		"hits": len(hits),
		"kept": len(videos),
	}).Info("Search completed")
	return videos, nil
}

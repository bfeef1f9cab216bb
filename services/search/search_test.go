package search

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/nijaru/yt-digest/config"
	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/logger"
	"github.com/nijaru/yt-digest/models"
)

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT45S", 45 * time.Second},
		{"PT1H2M3S", time.Hour + 2*time.Minute + 3*time.Second},
		{"PT10M", 10 * time.Minute},
		{"P1DT1S", 24*time.Hour + time.Second},
		{"P0D", 0},
		{"PT1.5S", 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		got, err := ParseISODuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "PT", "1H", "P1Y", "PT5", "PTM", "P1H"} {
		_, err := ParseISODuration(bad)
		assert.Error(t, err, bad)
	}
}

type video struct {
	id       string
	title    string
	duration string
	views    string
}

// youtubeServer answers search and videos requests per relevanceLanguage.
func youtubeServer(t *testing.T, byLang map[string][]video) *httptest.Server {
	t.Helper()

	all := make(map[string]video)
	for _, videos := range byLang {
		for _, v := range videos {
			all[v.id] = v
		}
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/search"):
			assert.Equal(t, "viewCount", r.URL.Query().Get("order"))
			var items []map[string]any
			for _, v := range byLang[r.URL.Query().Get("relevanceLanguage")] {
				items = append(items, map[string]any{
					"id":      map[string]string{"kind": "youtube#video", "videoId": v.id},
					"snippet": map[string]string{"title": v.title},
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
		case strings.HasSuffix(r.URL.Path, "/videos"):
			var items []map[string]any
			for _, id := range strings.Split(r.URL.Query().Get("id"), ",") {
				v, ok := all[id]
				if !ok {
					continue
				}
				items = append(items, map[string]any{
					"id":             v.id,
					"contentDetails": map[string]string{"duration": v.duration},
					"statistics":     map[string]string{"viewCount": v.views},
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestSearcher(t *testing.T, srv *httptest.Server) *Searcher {
	t.Helper()

	api, err := NewYouTubeAPI(context.Background(), "test-key", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	return NewSearcher(api, nil, config.SearchConfig{
		FocusedResults:     10,
		DivergentResults:   5,
		MinDuration:        time.Minute,
		DivergentLanguages: []string{"zh-TW", "en"},
	}, logger.Discard())
}

func TestSearchFocused(t *testing.T) {
	srv := youtubeServer(t, map[string][]video{
		"en": {
			{"aaaaaaaaaaa", "Less popular", "PT10M", "100"},
			{"bbbbbbbbbbb", "A short", "PT30S", "100000"},
			{"ccccccccccc", "Most popular", "PT1H", "5000"},
		},
	})
	defer srv.Close()

	videos, err := newTestSearcher(t, srv).Search(context.Background(), "golang", "en", models.SearchFocused)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "ccccccccccc", videos[0].ID)
	assert.Equal(t, uint64(5000), videos[0].Views)
	assert.Equal(t, "aaaaaaaaaaa", videos[1].ID)
	assert.Equal(t, "en", videos[1].Language)
	assert.Equal(t, "https://www.youtube.com/watch?v=aaaaaaaaaaa", videos[1].URL())
}

func TestSearchDivergentDeduplicates(t *testing.T) {
	srv := youtubeServer(t, map[string][]video{
		"zh-TW": {
			{"zzzzzzzzzzz", "Chinese", "PT5M", "10"},
			{"shared00000", "Shared", "PT5M", "20"},
		},
		"en": {
			{"shared00000", "Shared", "PT5M", "20"},
			{"eeeeeeeeeee", "English", "PT5M", "30"},
		},
	})
	defer srv.Close()

	videos, err := newTestSearcher(t, srv).Search(context.Background(), "tea", "en", models.SearchDivergent)
	require.NoError(t, err)

	var ids []string
	for _, v := range videos {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"shared00000", "zzzzzzzzzzz", "eeeeeeeeeee"}, ids)
	assert.Equal(t, "zh-TW", videos[0].Language)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	s := NewSearcher(nil, nil, config.SearchConfig{}, logger.Discard())
	_, err := s.Search(context.Background(), "", "en", models.SearchFocused)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestNewYouTubeAPIRequiresKey(t *testing.T) {
	_, err := NewYouTubeAPI(context.Background(), "")
	assert.True(t, errors.IsConfiguration(err))
}

func TestSearchKeepsVideosWithUnknownDuration(t *testing.T) {
	srv := youtubeServer(t, map[string][]video{
		"en": {
			{"aaaaaaaaaaa", "No duration", "", "10"},
			{"bbbbbbbbbbb", "Garbled", "soon", "20"},
			{"ccccccccccc", "A short", "PT30S", "30"},
		},
	})
	defer srv.Close()

	videos, err := newTestSearcher(t, srv).Search(context.Background(), "golang", "en", models.SearchFocused)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "bbbbbbbbbbb", videos[0].ID)
	assert.Equal(t, "aaaaaaaaaaa", videos[1].ID)
}

// fakeAPI serves canned hits per language. Every hit is ten minutes long.
type fakeAPI struct {
	hits    map[string][]Hit
	errs    map[string]error
	queries map[string]string
}

func (f *fakeAPI) Search(ctx context.Context, query, language string, limit int) ([]Hit, error) {
	if f.queries == nil {
		f.queries = make(map[string]string)
	}
	f.queries[language] = query
	if err, ok := f.errs[language]; ok {
		return nil, err
	}
	return f.hits[language], nil
}

func (f *fakeAPI) Details(ctx context.Context, ids []string) (map[string]Details, error) {
	details := make(map[string]Details, len(ids))
	for _, id := range ids {
		details[id] = Details{Duration: 10 * time.Minute, DurationKnown: true, Views: 1}
	}
	return details, nil
}

type fakeTranslator struct {
	reply string
	err   error
	calls int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, language string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func divergentSearcher(api API, translator Translator) *Searcher {
	return NewSearcher(api, translator, config.SearchConfig{
		DivergentResults:   5,
		MinDuration:        time.Minute,
		DivergentLanguages: []string{"zh-TW", "en"},
	}, logger.Discard())
}

func TestSearchDivergentSkipsFailingLanguage(t *testing.T) {
	api := &fakeAPI{
		hits: map[string][]Hit{"en": {{VideoID: "eeeeeeeeeee", Title: "English"}}},
		errs: map[string]error{"zh-TW": errors.Downstream("fake.Search", stderrors.New("quota exceeded"), "YouTube search failed")},
	}

	videos, err := divergentSearcher(api, nil).Search(context.Background(), "tea", "en", models.SearchDivergent)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "eeeeeeeeeee", videos[0].ID)
	assert.Equal(t, "en", videos[0].Language)
}

func TestSearchDivergentFailsWhenEveryLanguageFails(t *testing.T) {
	quota := errors.Downstream("fake.Search", stderrors.New("quota exceeded"), "YouTube search failed")
	api := &fakeAPI{errs: map[string]error{"zh-TW": quota, "en": quota}}

	_, err := divergentSearcher(api, nil).Search(context.Background(), "tea", "en", models.SearchDivergent)
	assert.True(t, errors.IsKind(err, errors.KindDownstreamService))
}

func TestSearchDivergentTranslatesForEnglish(t *testing.T) {
	api := &fakeAPI{}
	translator := &fakeTranslator{reply: "oolong tea"}

	_, err := divergentSearcher(api, translator).Search(context.Background(), "烏龍茶", "zh-TW", models.SearchDivergent)
	require.NoError(t, err)
	assert.Equal(t, "烏龍茶", api.queries["zh-TW"])
	assert.Equal(t, "oolong tea", api.queries["en"])
	assert.Equal(t, 1, translator.calls)
}

func TestSearchDivergentTranslationFallsBack(t *testing.T) {
	api := &fakeAPI{}
	translator := &fakeTranslator{err: stderrors.New("backend down")}

	_, err := divergentSearcher(api, translator).Search(context.Background(), "烏龍茶", "zh-TW", models.SearchDivergent)
	require.NoError(t, err)
	assert.Equal(t, "烏龍茶", api.queries["en"])
}

func TestSearchSkipsTranslationForASCII(t *testing.T) {
	api := &fakeAPI{}
	translator := &fakeTranslator{reply: "unused"}

	_, err := divergentSearcher(api, translator).Search(context.Background(), "oolong tea", "en", models.SearchDivergent)
	require.NoError(t, err)
	assert.Equal(t, "oolong tea", api.queries["en"])
	assert.Zero(t, translator.calls)
}

package captions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-digest/logger"
)

type fakeProvider struct {
	info        *VideoInfo
	infoErrs    []error
	downloadErr error
	content     string
	ext         string

	infoCalls     int
	downloadCalls int
}

func (f *fakeProvider) Info(ctx context.Context, url string) (*VideoInfo, error) {
	f.infoCalls++
	if len(f.infoErrs) > 0 {
		err := f.infoErrs[0]
		f.infoErrs = f.infoErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.info, nil
}

func (f *fakeProvider) Download(ctx context.Context, url string, sel Selection, dir string) (string, error) {
	f.downloadCalls++
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	ext := f.ext
	if ext == "" {
		ext = "vtt"
	}
	path := filepath.Join(dir, "caption."+sel.Language+"."+ext)
	return path, os.WriteFile(path, []byte(f.content), 0644)
}

func newTestFetcher(t *testing.T, p Provider) *Fetcher {
	return NewFetcher(p, FetcherConfig{TempDir: t.TempDir()}, logger.Discard())
}

var englishInfo = &VideoInfo{
	ID:        "abc",
	Title:     "A talk",
	Subtitles: map[string][]Track{"en": {{Ext: "vtt"}}},
}

func TestFetchSuccess(t *testing.T) {
	p := &fakeProvider{info: englishInfo, content: buildVTT([]string{"hello", "world"})}

	result, err := newTestFetcher(t, p).Fetch(context.Background(), "https://youtu.be/abc", []string{"en"})
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "A talk", result.Title)
	assert.Equal(t, "hello\nworld", result.Text)
	assert.Equal(t, Selection{Language: "en"}, result.Selection)
}

func TestFetchRetriesOnce(t *testing.T) {
	p := &fakeProvider{
		info:     englishInfo,
		infoErrs: []error{errors.New("network down")},
		content:  buildVTT([]string{"hello"}),
	}

	result, err := newTestFetcher(t, p).Fetch(context.Background(), "u", []string{"en"})
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, 2, p.infoCalls)
}

func TestFetchProviderDownIsNoCaptions(t *testing.T) {
	p := &fakeProvider{infoErrs: []error{errors.New("down"), errors.New("still down"), errors.New("x")}}

	result, err := newTestFetcher(t, p).Fetch(context.Background(), "u", []string{"en"})
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, 2, p.infoCalls)
}

func TestFetchDownloadFailureIsNoCaptions(t *testing.T) {
	p := &fakeProvider{info: englishInfo, downloadErr: errors.New("HTTP Error 403")}

	result, err := newTestFetcher(t, p).Fetch(context.Background(), "u", []string{"en"})
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, "A talk", result.Title)
	assert.Equal(t, 2, p.downloadCalls)
}

func TestFetchNoTracks(t *testing.T) {
	p := &fakeProvider{info: &VideoInfo{Title: "silent"}}

	result, err := newTestFetcher(t, p).Fetch(context.Background(), "u", []string{"en"})
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, 0, p.downloadCalls)
}

func TestFetchConvertsSRT(t *testing.T) {
	p := &fakeProvider{
		info:    englishInfo,
		ext:     "srt",
		content: "1\n00:00:01,000 --> 00:00:02,000\nfrom srt\n",
	}

	result, err := newTestFetcher(t, p).Fetch(context.Background(), "u", []string{"en"})
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "from srt", result.Text)
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{infoErrs: []error{context.Canceled, context.Canceled}}

	_, err := newTestFetcher(t, p).Fetch(ctx, "u", []string{"en"})
	assert.ErrorIs(t, err, context.Canceled)
}

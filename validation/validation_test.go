package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
)

func TestValidateURL(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{
			name:    "Empty URL",
			url:     "",
			wantErr: true,
		},
		{
			name:    "JavaScript URL",
			url:     "javascript:alert(1)",
			wantErr: true,
		},
		{
			name:    "Non-HTTP scheme",
			url:     "ftp://youtube.com/watch?v=dQw4w9WgXcQ",
			wantErr: true,
		},
		{
			name:    "Lookalike host",
			url:     "https://notyoutube.com/watch?v=dQw4w9WgXcQ",
			wantErr: true,
		},
		{
			name:    "Watch URL without id",
			url:     "https://www.youtube.com/watch",
			wantErr: true,
		},
		{
			name:    "Valid YouTube URL",
			url:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantErr: false,
		},
		{
			name:    "Valid YouTube shorts URL",
			url:     "https://www.youtube.com/shorts/dQw4w9WgXcQ",
			wantErr: false,
		},
		{
			name:    "Valid YouTube embed URL",
			url:     "https://www.youtube.com/embed/dQw4w9WgXcQ",
			wantErr: false,
		},
		{
			name:    "Valid YouTube short URL",
			url:     "https://youtu.be/dQw4w9WgXcQ",
			wantErr: false,
		},
		{
			name:    "Non-YouTube URL",
			url:     "https://example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsKind(err, errors.KindInvalidInput) {
				t.Errorf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10": "dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ":       "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?si=abc":             "dQw4w9WgXcQ",
		"https://www.youtube.com/live/dQw4w9WgXcQ":        "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=short":           "",
		"https://www.youtube.com/channel/UC123":           "",
		"https://vimeo.com/123456789":                     "",
	}

	for input, want := range tests {
		if got := ExtractVideoID(input); got != want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestValidateSubmission(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		sub     Submission
		wantErr bool
	}{
		{"neither", Submission{}, true},
		{"both", Submission{URL: "https://youtu.be/dQw4w9WgXcQ", Query: "tea"}, true},
		{"url", Submission{URL: " https://youtu.be/dQw4w9WgXcQ "}, false},
		{"query", Submission{Query: "oolong tea"}, false},
		{"long query", Submission{Query: strings.Repeat("q", maxQueryLength+1)}, true},
		{"bad language", Submission{Query: "tea", Options: models.Options{Language: "not a tag"}}, true},
		{"bad mode", Submission{Query: "tea", Options: models.Options{SearchMode: "wide"}}, true},
		{"long template", Submission{Query: "tea", Options: models.Options{Template: strings.Repeat("t", maxInstructionsLength+1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateSubmission(&tt.sub)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSubmission() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOptionsDefaults(t *testing.T) {
	opts := models.Options{}
	if err := NewValidator().ValidateOptions(&opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Language != "en" {
		t.Errorf("expected default language en, got %q", opts.Language)
	}
	if opts.SearchMode != models.SearchFocused {
		t.Errorf("expected default mode focused, got %q", opts.SearchMode)
	}

	opts = models.Options{Language: "zh-TW", SearchMode: models.SearchDivergent}
	if err := NewValidator().ValidateOptions(&opts); err != nil {
		t.Errorf("zh-TW divergent should be valid: %v", err)
	}
}

func TestValidateRequest(t *testing.T) {
	validator := NewValidator()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	err := validator.ValidateRequest(req, RequestValidationOpts{AllowedMethods: []string{http.MethodPost}})
	if err == nil {
		t.Error("expected method to be rejected")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	if err := validator.ValidateRequest(req, RequestValidationOpts{RequireJSON: true}); err == nil {
		t.Error("expected content type to be rejected")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(strings.Repeat("x", 64)))
	if err := validator.ValidateRequest(req, RequestValidationOpts{MaxContentLength: 10}); err == nil {
		t.Error("expected oversized body to be rejected")
	}
}

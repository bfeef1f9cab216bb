package validation

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
)

const (
	maxQueryLength        = 200
	maxTitleLength        = 300
	maxInstructionsLength = 4000
)

var (
	videoIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	languagePattern = regexp.MustCompile(`^[A-Za-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateURL accepts watch, short link, shorts and embed URLs on YouTube
// hosts.
func (v *Validator) ValidateURL(urlStr string) error {
	const op = "Validator.ValidateURL"

	if urlStr == "" {
		return errors.InvalidInput(op, nil, "URL is required")
	}

	parsedURL, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return errors.InvalidInput(op, err, "Invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.InvalidInput(op, nil, "URL must use HTTP or HTTPS")
	}

	host := parsedURL.Hostname()
	if !isYouTubeHost(host) {
		return errors.InvalidInput(op, nil, "Only YouTube URLs are supported")
	}

	if ExtractVideoID(urlStr) == "" {
		return errors.InvalidInput(op, nil, "URL does not contain a valid video ID")
	}

	return nil
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(host)
	return host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

// ExtractVideoID returns the 11 character video id in a YouTube URL, or
// "" when there is none.
func ExtractVideoID(urlStr string) string {
	parsedURL, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil || !isYouTubeHost(parsedURL.Hostname()) {
		return ""
	}

	var id string
	if strings.EqualFold(parsedURL.Hostname(), "youtu.be") {
		id = strings.Trim(parsedURL.Path, "/")
	} else {
		segments := strings.Split(strings.Trim(parsedURL.Path, "/"), "/")
		switch {
		case len(segments) == 1 && segments[0] == "watch":
			id = parsedURL.Query().Get("v")
		case len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live"):
			id = segments[1]
		}
	}

	if !videoIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// Submission is a job request as the API receives it.
type Submission struct {
	URL     string
	Query   string
	Title   string
	Options models.Options
}

// ValidateSubmission checks that exactly one of URL and query is set and
// that the options are usable. Defaults are applied in place.
func (v *Validator) ValidateSubmission(s *Submission) error {
	const op = "Validator.ValidateSubmission"

	s.URL = strings.TrimSpace(s.URL)
	s.Query = strings.TrimSpace(s.Query)

	switch {
	case s.URL == "" && s.Query == "":
		return errors.InvalidInput(op, nil, "Either url or query is required")
	case s.URL != "" && s.Query != "":
		return errors.InvalidInput(op, nil, "Provide either url or query, not both")
	case s.URL != "":
		if err := v.ValidateURL(s.URL); err != nil {
			return err
		}
	case len(s.Query) > maxQueryLength:
		return errors.InvalidInput(op, nil, fmt.Sprintf("Query exceeds %d characters", maxQueryLength))
	}

	if len(s.Title) > maxTitleLength {
		return errors.InvalidInput(op, nil, fmt.Sprintf("Title exceeds %d characters", maxTitleLength))
	}

	return v.ValidateOptions(&s.Options)
}

// ValidateOptions applies defaults to opts and rejects unusable values.
func (v *Validator) ValidateOptions(opts *models.Options) error {
	const op = "Validator.ValidateOptions"

	if opts.Language == "" {
		opts.Language = models.DefaultLanguage
	}
	if !languagePattern.MatchString(opts.Language) {
		return errors.InvalidInput(op, nil, "Language must be a BCP-47 tag")
	}

	switch opts.SearchMode {
	case "":
		opts.SearchMode = models.SearchFocused
	case models.SearchFocused, models.SearchDivergent:
	default:
		return errors.InvalidInput(op, nil, "search_mode must be focused or divergent")
	}

	if len(opts.Template) > maxInstructionsLength || len(opts.ExtraInstructions) > maxInstructionsLength {
		return errors.InvalidInput(op, nil, fmt.Sprintf("Template and instructions are limited to %d characters", maxInstructionsLength))
	}
	return nil
}

// RequestValidationOpts holds options for request validation
type RequestValidationOpts struct {
	MaxContentLength int64
	AllowedMethods   []string
	RequireJSON      bool
}

// ValidateRequest validates HTTP requests
func (v *Validator) ValidateRequest(r *http.Request, opts RequestValidationOpts) error {
	const op = "Validator.ValidateRequest"

	if len(opts.AllowedMethods) > 0 {
		methodAllowed := false
		for _, method := range opts.AllowedMethods {
			if r.Method == method {
				methodAllowed = true
				break
			}
		}
		if !methodAllowed {
			return errors.InvalidInput(op, nil, fmt.Sprintf("Method %s not allowed", r.Method))
		}
	}

	if opts.RequireJSON {
		if contentType := r.Header.Get("Content-Type"); !strings.Contains(contentType, "application/json") {
			return errors.InvalidInput(op, nil, "Content-Type must be application/json")
		}
	}

	if opts.MaxContentLength > 0 && r.ContentLength > opts.MaxContentLength {
		return errors.InvalidInput(op, nil, "Request body too large")
	}

	return nil
}

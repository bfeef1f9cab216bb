package captions

import (
	"html"
	"regexp"
	"strings"

	"github.com/asticode/go-astisub"
	"github.com/pkg/errors"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanVTT parses a WebVTT document and returns its transcript text.
func CleanVTT(vtt string) (string, error) {
	vtt = strings.TrimPrefix(vtt, "\ufeff")
	vtt = strings.ReplaceAll(vtt, "\r\n", "\n")

	subs, err := astisub.ReadFromWebVTT(strings.NewReader(vtt))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse WebVTT")
	}
	return CleanSubtitles(subs), nil
}

// ReadCaptionFile parses a caption file in any format astisub understands
// (WebVTT, SRT, TTML, SSA) and returns its transcript text.
func ReadCaptionFile(path string) (string, error) {
	subs, err := astisub.OpenFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse caption file %s", path)
	}
	return CleanSubtitles(subs), nil
}

// CleanSubtitles renders one line per cue with leftover markup removed and
// consecutive duplicate lines dropped.
func CleanSubtitles(subs *astisub.Subtitles) string {
	var out []string
	last := ""
	for _, item := range subs.Items {
		text := cueText(item)
		if text == "" || text == last {
			continue
		}
		out = append(out, text)
		last = text
	}
	return strings.Join(out, "\n")
}

func cueText(item *astisub.Item) string {
	parts := make([]string, 0, len(item.Lines))
	for _, line := range item.Lines {
		var b strings.Builder
		for _, li := range line.Items {
			b.WriteString(li.Text)
			b.WriteString(" ")
		}
		text := tagPattern.ReplaceAllString(b.String(), "")
		text = html.UnescapeString(text)
		text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

package pipeline

import (
	"fmt"

	"github.com/nijaru/yt-digest/models"
)

// ConsistencyReport compares the transcripts a run produced with the
// summaries it found.
type ConsistencyReport struct {
	Match    bool
	Expected int
	Actual   int
}

func (r ConsistencyReport) Warning() string {
	if r.Match {
		return ""
	}
	return fmt.Sprintf("expected %d summaries but found %d", r.Expected, r.Actual)
}

// CheckConsistency expects one summary per video with a transcript.
func CheckConsistency(videos []*models.VideoDescriptor, summaryCount int) ConsistencyReport {
	expected := 0
	for _, v := range videos {
		if v.HasTranscript() {
			expected++
		}
	}
	return ConsistencyReport{
		Match:    expected == summaryCount,
		Expected: expected,
		Actual:   summaryCount,
	}
}

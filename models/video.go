package models

import "errors"

type TranscriptSource string

const (
	SourceCaptions TranscriptSource = "captions"
	SourceAudio    TranscriptSource = "audio"
)

// FailureReason tags why a video dropped out of the pipeline.
type FailureReason string

const (
	ReasonNone                       FailureReason = ""
	ReasonNoCaptionsNoAudio          FailureReason = "no_captions_no_audio"
	ReasonDownloadFailed             FailureReason = "download_failed"
	ReasonTranscriptionFailed        FailureReason = "transcription_failed"
	ReasonTransientProviderExhausted FailureReason = "transient_provider_error_exhausted"
	ReasonSummarizationFailed        FailureReason = "summarization_failed"
)

// VideoDescriptor is the working record for one video inside one job run.
// It is owned by a single orchestrator run and never shared across jobs.
type VideoDescriptor struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	QueryLang string `json:"query_lang"`

	// TranscriptPath is the artifact key of the resolved transcript.
	// Raw caption and audio files live only in per-call temp dirs.
	TranscriptPath string           `json:"transcript_path,omitempty"`
	Source         TranscriptSource `json:"source,omitempty"`

	TranscriptFailed    bool          `json:"transcript_failed,omitempty"`
	AudioDownloadFailed bool          `json:"audio_download_failed,omitempty"`
	TranscriptionFailed bool          `json:"transcription_failed,omitempty"`
	SummaryFailed       bool          `json:"summary_failed,omitempty"`
	FailureReason       FailureReason `json:"failure_reason,omitempty"`
}

func (v *VideoDescriptor) HasTranscript() bool {
	return v.TranscriptPath != ""
}

// SetTranscript records a successful resolution. Only one source is kept.
func (v *VideoDescriptor) SetTranscript(path string, source TranscriptSource) {
	v.TranscriptPath = path
	v.Source = source
	v.TranscriptFailed = false
	v.FailureReason = ReasonNone
}

// Fail records a resolution failure and clears any transcript.
func (v *VideoDescriptor) Fail(reason FailureReason) {
	v.TranscriptPath = ""
	v.Source = ""
	v.FailureReason = reason
	switch reason {
	case ReasonDownloadFailed:
		v.AudioDownloadFailed = true
	case ReasonTranscriptionFailed:
		v.TranscriptionFailed = true
	}
	v.TranscriptFailed = true
}

// FailSummary records a summarizer failure. The transcript stays valid.
func (v *VideoDescriptor) FailSummary() {
	v.SummaryFailed = true
	v.FailureReason = ReasonSummarizationFailed
}

func (v *VideoDescriptor) DisplayTitle() string {
	if v.Title != "" {
		return v.Title
	}
	return v.URL
}

// VideoError is a per-video failure. It is recorded on the descriptor and
// never aborts the job.
type VideoError struct {
	Reason FailureReason
	Err    error
}

func (e *VideoError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *VideoError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the failure reason carried by err, if any.
func ReasonOf(err error) (FailureReason, bool) {
	var videoErr *VideoError
	if errors.As(err, &videoErr) {
		return videoErr.Reason, true
	}
	return ReasonNone, false
}

package models

import (
	"time"
)

type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// Phase is the orchestrator step a running job is in.
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseCaptions  Phase = "captions"
	PhaseAudio     Phase = "audio"
	PhaseSummarize Phase = "summarize"
	PhaseExtract   Phase = "extract"
	PhaseDone      Phase = "done"
)

// DefaultLanguage applies when a submission names no language.
const DefaultLanguage = "en"

type SearchMode string

const (
	SearchFocused   SearchMode = "focused"
	SearchDivergent SearchMode = "divergent"
)

// Owner identifies who submitted a job. Anonymous jobs carry only an IP.
type Owner struct {
	UserID    string `json:"user_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

type Options struct {
	Language          string     `json:"language"`
	ProcessAudio      bool       `json:"process_audio"`
	SearchMode        SearchMode `json:"search_mode"`
	Template          string     `json:"template,omitempty"`
	ExtraInstructions string     `json:"extra_instructions,omitempty"`
}

// SummaryItem is one video's entry in a finished job's result.
type SummaryItem struct {
	VideoID        string `json:"video_id"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	Summary        string `json:"summary"`
	FullTranscript string `json:"full_transcript"`
}

type Result struct {
	FinalContent        string        `json:"final_content"`
	IndividualSummaries []SummaryItem `json:"individual_summaries"`
}

type Job struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Phase        Phase     `json:"phase"`
	Owner        Owner     `json:"owner"`
	Query        string    `json:"query,omitempty"`
	VideoTitle   string    `json:"video_title,omitempty"`
	VideoURL     string    `json:"video_url,omitempty"`
	Options      Options   `json:"options"`
	Result       *Result   `json:"result,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Warning      string    `json:"warning,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JobUpdate carries the fields one Update call changes. Nil fields are left
// untouched.
type JobUpdate struct {
	Status       *Status
	Phase        *Phase
	Result       *Result
	ErrorMessage *string
	Warning      *string
	VideoTitle   *string
}

func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

// CanTransition reports whether a job may move from one status to another.
// Terminal statuses never change.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.IsTerminal()
	}
	switch from {
	case StatusStarting:
		return to == StatusRunning || to.IsTerminal()
	case StatusRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

func (j *Job) IsTerminal() bool { return j.Status.IsTerminal() }

// IsStale reports whether a non-terminal job was last touched more than
// timeout before now.
func (j *Job) IsStale(now time.Time, timeout time.Duration) bool {
	if j.IsTerminal() {
		return false
	}
	return now.Sub(j.UpdatedAt) > timeout
}

// Apply copies the set fields of u onto j.
func (j *Job) Apply(u JobUpdate, now time.Time) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Phase != nil {
		j.Phase = *u.Phase
	}
	if u.Result != nil {
		j.Result = u.Result
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = *u.ErrorMessage
	}
	if u.Warning != nil {
		j.Warning = *u.Warning
	}
	if u.VideoTitle != nil {
		j.VideoTitle = *u.VideoTitle
	}
	j.UpdatedAt = now
}

// JobView is what polling clients receive.
type JobView struct {
	ID           string  `json:"id"`
	Status       Status  `json:"status"`
	Phase        Phase   `json:"phase,omitempty"`
	Result       *Result `json:"result,omitempty"`
	ErrorMessage string  `json:"error,omitempty"`
	Warning      string  `json:"warning,omitempty"`
	VideoTitle   string  `json:"video_title,omitempty"`
	VideoURL     string  `json:"video_url,omitempty"`
	Query        string  `json:"query,omitempty"`
}

func NewJobView(j *Job) *JobView {
	return &JobView{
		ID:           j.ID,
		Status:       j.Status,
		Phase:        j.Phase,
		Result:       j.Result,
		ErrorMessage: j.ErrorMessage,
		Warning:      j.Warning,
		VideoTitle:   j.VideoTitle,
		VideoURL:     j.VideoURL,
		Query:        j.Query,
	}
}

func StatusPtr(s Status) *Status { return &s }
func PhasePtr(p Phase) *Phase    { return &p }
func StringPtr(s string) *string { return &s }

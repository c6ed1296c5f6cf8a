package model

import (
	"encoding/json"
	"time"
)

// Task is one question in the chain, identified by its URL. Attempt is
// incremented only by the navigator's own retry loop; a Task is discarded
// once the navigator moves on.
type Task struct {
	URL      string    `json:"url"`
	Deadline time.Time `json:"deadline"`
	Attempt  int       `json:"attempt"`
}

// TimeLeft reports the remaining budget for the task.
func (t Task) TimeLeft(now time.Time) time.Duration {
	return t.Deadline.Sub(now)
}

// Identity holds the caller-supplied credentials stamped onto every
// submission payload. These always win over template-provided values.
type Identity struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
}

// SubmissionPayload is the JSON body posted to a submit endpoint. Fields
// holds template keys merged from server-provided content; email, secret,
// and url are forced to the engine's own values before submission.
type SubmissionPayload struct {
	Fields map[string]any
}

// NewPayload builds a payload from an optional template, forcing identity
// and task-url fields and guaranteeing an answer key is present.
func NewPayload(id Identity, taskURL string, answer Answer, template map[string]any) SubmissionPayload {
	fields := make(map[string]any, len(template)+4)
	for k, v := range template {
		fields[k] = v
	}
	if _, ok := fields["answer"]; !ok {
		fields["answer"] = answer.Value()
	}
	fields["email"] = id.Email
	fields["secret"] = id.Secret
	fields["url"] = taskURL
	return SubmissionPayload{Fields: fields}
}

// Answer returns the payload's answer field.
func (p SubmissionPayload) Answer() any { return p.Fields["answer"] }

// SetNote attaches an explanatory note (used with null answers).
func (p SubmissionPayload) SetNote(note string) {
	p.Fields["note"] = note
}

// MarshalJSON encodes the payload as a flat JSON object.
func (p SubmissionPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields)
}

// Correctness is the tri-state outcome reported by a submit endpoint.
type Correctness int

const (
	CorrectUnknown Correctness = iota
	CorrectYes
	CorrectNo
)

// SubmissionResult is a normalized submit response. NextURL is resolved
// from the response keys url, next_url, nextTaskUrl in that priority.
type SubmissionResult struct {
	Raw        json.RawMessage `json:"raw,omitempty"`
	StatusCode int             `json:"status_code"`
	Correct    Correctness     `json:"correct"`
	NextURL    string          `json:"next_url,omitempty"`
	RetryDelay time.Duration   `json:"retry_delay,omitempty"`
}

// AttemptRecord is an immutable snapshot of one submission attempt.
type AttemptRecord struct {
	TaskURL   string             `json:"task_url"`
	Attempt   int                `json:"attempt"`
	SubmitURL string             `json:"submit_url,omitempty"`
	Payload   map[string]any     `json:"payload,omitempty"`
	Extractor string             `json:"extractor,omitempty"`
	Result    *SubmissionResult  `json:"result,omitempty"`
	Err       string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunTimeUp    RunStatus = "time_up"
	RunError     RunStatus = "error"
)

// RunSummary is the terminal output of a chain traversal. History is
// always present, even on error: a run never loses attempts already
// submitted.
type RunSummary struct {
	RunID    string          `json:"run_id"`
	Status   RunStatus       `json:"status"`
	Err      string          `json:"error,omitempty"`
	Tasks    int             `json:"tasks"`
	Duration time.Duration   `json:"duration"`
	History  []AttemptRecord `json:"history"`
}

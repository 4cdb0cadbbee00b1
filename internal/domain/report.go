package domain

import "time"

// CrawlReport summarizes one crawl cycle.
type CrawlReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Failed     int       `json:"failed"`
	Indexed    int       `json:"indexed"`
	IndexError string    `json:"index_error,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Duration is how long the cycle took.
func (r CrawlReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SourceHealth is the outcome of the latest fetch of one source.
type SourceHealth struct {
	Source              Source    `json:"source"`
	Name                string    `json:"name"`
	Kind                string    `json:"kind"`
	LastRun             time.Time `json:"last_run"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	Records             int       `json:"records"`
	DurationMS          int64     `json:"duration_ms"`
	Error               string    `json:"error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Healthy reports whether the latest fetch returned records without error.
func (h SourceHealth) Healthy() bool {
	return h.Error == "" && h.Records > 0
}

// SourceRef points the asker at one deal used to build an answer.
type SourceRef struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Answer is the reply to a free-text question.
type Answer struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

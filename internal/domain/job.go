package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current status of a download job
type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusDownloading JobStatus = "downloading"
	StatusCompleted   JobStatus = "completed"
	StatusError       JobStatus = "error"
)

// DefaultTitle is used when metadata carries no usable title
const DefaultTitle = "Unknown"

// Job represents one requested download tracked from creation to a terminal state
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Progress  float64   `json:"progress"`
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	Quality   string    `json:"quality"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Filename  string    `json:"filename,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewJob creates a pending job for the given request parameters
func NewJob(url, format, quality, title string) *Job {
	if title == "" {
		title = DefaultTitle
	}
	return &Job{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Progress:  0,
		URL:       url,
		Format:    format,
		Quality:   quality,
		Title:     title,
		CreatedAt: time.Now(),
	}
}

// MarkDownloading moves a pending job into the downloading state
func (j *Job) MarkDownloading() error {
	if j.Status != StatusPending {
		return &TransitionError{ID: j.ID, From: j.Status, To: StatusDownloading}
	}
	j.Status = StatusDownloading
	j.Progress = 0
	return nil
}

// UpdateProgress records a new percentage for a downloading job.
// Values below the current progress are ignored so progress never goes backwards.
func (j *Job) UpdateProgress(percent float64) error {
	if j.Status != StatusDownloading {
		return &TransitionError{ID: j.ID, From: j.Status, To: StatusDownloading}
	}
	percent = math.Max(0, math.Min(100, percent))
	if percent > j.Progress {
		j.Progress = percent
	}
	return nil
}

// MarkCompleted marks the job as completed with the downloaded file
func (j *Job) MarkCompleted(filename string) error {
	if j.Status != StatusDownloading {
		return &TransitionError{ID: j.ID, From: j.Status, To: StatusCompleted}
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.Filename = filename
	j.Error = ""
	return nil
}

// MarkFailed marks the job as failed. A pending job may fail directly when
// execution cannot even begin.
func (j *Job) MarkFailed(err error) error {
	if j.IsTerminal() {
		return &TransitionError{ID: j.ID, From: j.Status, To: StatusError}
	}
	j.Status = StatusError
	j.Filename = ""
	if err != nil {
		j.Error = err.Error()
	} else {
		j.Error = "unknown error"
	}
	return nil
}

// IsTerminal checks if the job reached completed or error
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}

// Progress is a cumulative byte count reported while a download is running
type Progress struct {
	DownloadedBytes    int64
	TotalBytes         int64
	TotalBytesEstimate int64
}

// Percent computes the completion percentage rounded to two decimals.
// The exact total is preferred over the estimate; ok is false when neither is known.
func (p Progress) Percent() (percent float64, ok bool) {
	total := p.TotalBytes
	if total <= 0 {
		total = p.TotalBytesEstimate
	}
	if total <= 0 {
		return 0, false
	}
	pct := float64(p.DownloadedBytes) / float64(total) * 100
	return math.Round(pct*100) / 100, true
}

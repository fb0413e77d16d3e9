package domain

import (
	"context"
	"time"
)

// HistoryRecord is the persisted summary of a completed job
type HistoryRecord struct {
	JobID     string    `json:"id" gorm:"primaryKey"`
	URL       string    `json:"url" gorm:"not null"`
	Format    string    `json:"format"`
	Quality   string    `json:"quality"`
	Status    JobStatus `json:"status" gorm:"index"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for GORM
func (HistoryRecord) TableName() string {
	return "download_history"
}

// NewHistoryRecord builds the summary written for a finished job
func NewHistoryRecord(job *Job) HistoryRecord {
	title := job.Title
	if title == "" {
		title = DefaultTitle
	}
	return HistoryRecord{
		JobID:     job.ID,
		URL:       job.URL,
		Format:    job.Format,
		Quality:   job.Quality,
		Status:    job.Status,
		Title:     title,
		CreatedAt: time.Now(),
	}
}

// HistorySink persists completed job summaries on a best-effort basis.
// Callers log and discard any error it returns.
type HistorySink interface {
	Record(ctx context.Context, record HistoryRecord) error

	// Enabled reports whether records actually go anywhere
	Enabled() bool
}

// HistoryReader is implemented by sinks that can list what they stored
type HistoryReader interface {
	ListHistory(ctx context.Context, limit int) ([]HistoryRecord, error)
}

package ledger

import "time"

// Status represents the lifecycle of a ledger record.
type Status string

const (
	StatusProcessing  Status = "processing"
	StatusSuccess     Status = "success"
	StatusFailedRetry Status = "failed_retry"
	StatusFailed      Status = "failed"
)

// Terminal reports whether the status is eligible for the age-based sweep.
// Records in processing or failed_retry represent unresolved state and are
// never removed by age alone.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// maxErrorMessageLen bounds the stored error text.
const maxErrorMessageLen = 500

// Record is a single ledger row.
type Record struct {
	ContentHash    string
	OriginalPath   string
	FileName       string
	FileSize       int64
	Status         Status
	ProcessedAt    time.Time
	Duration       float64
	ErrorMessage   string
	Language       string
	NotePath       string
	AttachmentPath string
}

// Statistics aggregates ledger state for health reporting.
type Statistics struct {
	TotalSuccess    int
	TotalFailed     int
	TotalProcessing int
	AvgDuration     float64
	TotalDuration   float64
	ProcessedToday  int
	SuccessRate     float64
}

package models

// Job statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusEmpty      = "empty"
	StatusFailed     = "failed"
)

// ScrapeResponse is the immediate response for POST /api/v1/scrape.
type ScrapeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Progress is a point-in-time view of a running crawl.
type Progress struct {
	// Phase is "discovery" or "extraction".
	Phase string `json:"phase"`

	// Done counts finished extractions, Total the dispatched ones.
	Done  int `json:"done"`
	Total int `json:"total"`

	// Kept counts valid records so far.
	Kept int `json:"kept"`

	Message string `json:"message"`
}

// Fraction returns Done/Total in [0,1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// ScrapeStatusResponse is the response for GET /api/v1/scrape/:id.
type ScrapeStatusResponse struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Progress    Progress     `json:"progress"`
	NewRows     int          `json:"new_rows"`
	TotalRows   int          `json:"total_rows"`
	Columns     []string     `json:"columns,omitempty"`
	Filename    string       `json:"filename,omitempty"`
	DurationMs  int64        `json:"duration_ms,omitempty"`
	Warning     string       `json:"warning,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
	CreatedAt   int64        `json:"created_at"`
	CompletedAt int64        `json:"completed_at,omitempty"`
}

// ExportResponse is the response for GET /api/v1/scrape/:id/export.
type ExportResponse struct {
	Filename      string `json:"filename"`
	MimeType      string `json:"mime_type"`
	ContentBase64 string `json:"content_base64"`
}

// ErrorResponse wraps an error detail for non-2xx replies.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string   `json:"status"` // "healthy" or "degraded"
	Uptime  string   `json:"uptime"`
	Jobs    JobStats `json:"jobs"`
	Version string   `json:"version"`
}

// JobStats reports the state of the job store.
type JobStats struct {
	Running    int `json:"running"`
	Stored     int `json:"stored"`
	MaxRunning int `json:"max_running"`
}

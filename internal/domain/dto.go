package domain

// CreateJobRequest represents the request body for starting a batch download.
// VideoURLs holds newline delimited links; it must be present but may be empty.
type CreateJobRequest struct {
	VideoURLs *string `json:"videoUrls" validate:"required"`
}

// CreateJobResponse is returned when a job was accepted.
type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

// ErrorResponse is the body of every non-success response.
type ErrorResponse struct {
	Error string `json:"error,omitempty"`
}

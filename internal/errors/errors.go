package errors

import "errors"

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrNoValidURLs      = errors.New("No valid YouTube URLs found.")
	ErrMissingVideoURLs = errors.New("Missing videoUrls in request")
	ErrArtifactNotFound = errors.New("File not found")

	ErrEmptyInput         = errors.New("Please enter at least one YouTube URL.")
	ErrSubscriptionActive = errors.New("a download job is already in progress")
	ErrConnectionLost     = errors.New("progress stream connection lost")
	ErrIdleTimeout        = errors.New("progress stream idle timeout")
)

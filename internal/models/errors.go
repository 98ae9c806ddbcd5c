package models

import "errors"

// Sentinel causes shared by the content collaborators. Errors wrapping them
// are final: retrying the same call will not help.
var (
	// ErrNotFound means the reference does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the reference exists but the requested content
	// (a caption track, a readable body) cannot be obtained from it.
	ErrUnavailable = errors.New("content unavailable")
)

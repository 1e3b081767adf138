// Package qerr defines the typed error kinds the inference pipeline can
// surface to the CLI boundary (spec §7). Each kind is a sentinel value;
// callers use errors.Is to classify a returned error and pick an exit code.
package qerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", ErrX) to attach
// context while keeping errors.Is(err, ErrX) working.
var (
	// ErrUnsupportedSite means the site name is not in the registry, or
	// auto-detection found no server_name match in the capture.
	ErrUnsupportedSite = errors.New("unsupported site")

	// ErrEmptyConversation means no TLS flow to any known server name was
	// found in the capture.
	ErrEmptyConversation = errors.New("empty conversation")

	// ErrNoSubsequence means the LAS search returned a trace of length <= 1
	// across every stream in the capture.
	ErrNoSubsequence = errors.New("no acceptable subsequence")

	// ErrBadSiteProfile means a registry entry violates a declared
	// invariant (e.g. HTTP/1.1 with add_byte >= 2).
	ErrBadSiteProfile = errors.New("invalid site profile")

	// ErrCacheMismatch means a persisted QueryIndex cache's row count
	// disagrees with the current dictionary. Callers inside
	// internal/queryindex treat this as recoverable (rebuild); it should
	// not reach the CLI boundary as a failure.
	ErrCacheMismatch = errors.New("cache mismatch")
)

// Wrap attaches context to a sentinel kind while preserving errors.Is.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// ExitCode maps a pipeline error to the process exit code from spec §6.
// Unrecognized errors (including nil) map to 0/4 as noted.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUnsupportedSite), errors.Is(err, ErrEmptyConversation):
		return 1
	case errors.Is(err, ErrNoSubsequence):
		return 2
	case errors.Is(err, ErrBadSiteProfile):
		return 3
	default:
		return 4
	}
}

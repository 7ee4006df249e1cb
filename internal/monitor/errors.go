package monitor

import (
	"errors"

	"github.com/Steiner-254/subsentry/internal/enum"
	"github.com/Steiner-254/subsentry/internal/state"
)

// Failure kinds recorded in the event log. Only storage corruption is fatal,
// and only for the domain whose state is affected.
const (
	kindProviderFailure        = "provider_failure"
	kindPartialProviderFailure = "partial_provider_failure"
	kindStorageCorruption      = "storage_corruption"
	kindToolError              = "tool_error"
)

// IsProviderFailure reports whether every enumeration provider failed for a
// cycle. The domain's state is not advanced and the next interval retries.
func IsProviderFailure(err error) bool {
	return errors.Is(err, enum.ErrAllProvidersFailed)
}

// IsStorageCorruption reports whether a state artifact was unreadable or
// failed its checksum. The affected domain's loop must stop rather than
// reinitialize: a rebuilt known set would re-report every subdomain as new.
func IsStorageCorruption(err error) bool {
	return errors.Is(err, state.ErrCorrupt)
}
